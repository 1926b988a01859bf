package users

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SelfDeleter removes the calling user from the identity service
type SelfDeleter interface {
	DeleteSelf(ctx context.Context, accessToken string) error
}

// SessionInvalidator removes every session owned by a principal
type SessionInvalidator interface {
	DeleteAllByPrincipal(ctx context.Context, principal string) (int, error)
}

// Service implements user operations that span the identity service and the session store.
type Service struct {
	identity SelfDeleter
	sessions SessionInvalidator
}

func NewService(identity SelfDeleter, sessions SessionInvalidator) (*Service, error) {
	if identity == nil {
		return nil, errors.New("[NewService] identity client is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewService] session invalidator is required")
	}
	return &Service{identity: identity, sessions: sessions}, nil
}

// DeleteSelf deletes the user from the identity service and then invalidates all
// of the principal's sessions. Errors from either step are returned to the caller.
func (s *Service) DeleteSelf(ctx context.Context, principal, accessToken string) (int, error) {
	if principal == "" {
		return 0, errors.New("[Service.DeleteSelf] principal is required")
	}
	if err := s.identity.DeleteSelf(ctx, accessToken); err != nil {
		return 0, errors.Wrap(err, "[Service.DeleteSelf] identity.DeleteSelf")
	}
	deleted, err := s.sessions.DeleteAllByPrincipal(ctx, principal)
	if err != nil {
		return deleted, errors.Wrap(err, "[Service.DeleteSelf] sessions.DeleteAllByPrincipal")
	}
	log.Info().Str("principal", principal).Int("sessions_deleted", deleted).Msg("user deleted self")
	return deleted, nil
}
