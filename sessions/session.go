package sessions

import "time"

// Session is a gateway login session as held in the shared session store.
type Session struct {
	ID                  string        `json:"id"`
	Principal           string        `json:"principal"`
	CreatedAt           time.Time     `json:"createdAt"`
	LastAccessedAt      time.Time     `json:"lastAccessedAt"`
	MaxInactiveInterval time.Duration `json:"maxInactiveInterval"`
}

// ExpiresAt is lastAccessed + maxInactive
func (s *Session) ExpiresAt() time.Time {
	return s.LastAccessedAt.Add(s.MaxInactiveInterval)
}

func (s *Session) Expired(now time.Time) bool {
	return s.MaxInactiveInterval > 0 && !now.Before(s.ExpiresAt())
}

func (s *Session) Summary() Summary {
	return Summary{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		ExpiresAt:      s.ExpiresAt(),
	}
}

// Summary is the read-only view of a session returned to callers
type Summary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created"`
	LastAccessedAt time.Time `json:"lastAccessed"`
	ExpiresAt      time.Time `json:"expiresAt"`
}
