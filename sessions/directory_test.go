package sessions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	gwerrors "github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	fakesessionrepo "github.com/jrsteele09/go-auth-gateway/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	testPrincipal = "jane@example.com"
	otherUser     = "john@example.com"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	repo *fakesessionrepo.FakeSessionRepo
	dir  *sessions.Directory
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	repo := fakesessionrepo.NewFakeSessionRepo()
	dir, err := sessions.NewDirectory(repo,
		sessions.WithNowTime(func() time.Time { return testNow }),
		sessions.WithDeleteParallelism(2),
	)
	require.NoError(t, err)
	return &testFixture{repo: repo, dir: dir}
}

func (f *testFixture) addSession(t *testing.T, id, principal string, lastAccessed time.Time) {
	t.Helper()
	require.NoError(t, f.repo.Save(context.Background(), &sessions.Session{
		ID:                  id,
		Principal:           principal,
		CreatedAt:           lastAccessed.Add(-time.Hour),
		LastAccessedAt:      lastAccessed,
		MaxInactiveInterval: 7 * 24 * time.Hour,
	}))
}

// TestNewDirectory_Unindexed tests that a store without a principal index is rejected
func TestNewDirectory_Unindexed(t *testing.T) {
	_, err := sessions.NewDirectory(fakesessionrepo.UnindexedRepo{Inner: fakesessionrepo.NewFakeSessionRepo()})
	require.Error(t, err)
	require.True(t, gwerrors.Is(err, gwerrors.ErrConfiguration))

	_, err = sessions.NewDirectory(nil)
	require.ErrorIs(t, err, gwerrors.ErrConfiguration)
}

// TestListByPrincipal_Sorted tests ordering by lastAccessed descending with id tie-break
func TestListByPrincipal_Sorted(t *testing.T) {
	f := setupTestFixture(t)
	f.addSession(t, "s-old", testPrincipal, testNow.Add(-3*time.Hour))
	f.addSession(t, "s-b", testPrincipal, testNow.Add(-time.Hour))
	f.addSession(t, "s-a", testPrincipal, testNow.Add(-time.Hour))
	f.addSession(t, "s-new", testPrincipal, testNow.Add(-time.Minute))
	f.addSession(t, "s-other", otherUser, testNow)

	list, err := f.dir.ListByPrincipal(context.Background(), testPrincipal)
	require.NoError(t, err)

	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	require.Equal(t, []string{"s-new", "s-a", "s-b", "s-old"}, ids)
	require.Equal(t, testNow.Add(-time.Minute).Add(7*24*time.Hour), list[0].ExpiresAt)
}

// TestListByPrincipal_SkipsExpired tests that expired sessions are not listed
func TestListByPrincipal_SkipsExpired(t *testing.T) {
	f := setupTestFixture(t)
	f.addSession(t, "live", testPrincipal, testNow.Add(-time.Hour))
	f.addSession(t, "dead", testPrincipal, testNow.Add(-8*24*time.Hour))

	list, err := f.dir.ListByPrincipal(context.Background(), testPrincipal)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "live", list[0].ID)
}

// TestListByPrincipal_Empty tests a principal with no sessions
func TestListByPrincipal_Empty(t *testing.T) {
	f := setupTestFixture(t)

	list, err := f.dir.ListByPrincipal(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, list)
}

// TestDeleteAllByPrincipal_PartialFailure tests that failed deletes are excluded from the count
func TestDeleteAllByPrincipal_PartialFailure(t *testing.T) {
	f := setupTestFixture(t)
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		f.addSession(t, id, testPrincipal, testNow)
	}
	f.addSession(t, "keep", otherUser, testNow)
	f.repo.FailDelete["s2"] = errors.New("store unavailable")
	f.repo.FailDelete["s4"] = errors.New("store unavailable")

	n, err := f.dir.DeleteAllByPrincipal(context.Background(), testPrincipal)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	remaining, err := f.repo.FindByPrincipalName(context.Background(), testPrincipal)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	require.Contains(t, remaining, "s2")
	require.Contains(t, remaining, "s4")

	_, err = f.repo.FindByID(context.Background(), "keep")
	require.NoError(t, err)
}

// TestDeleteAllByPrincipal_LookupFails tests that a failed index lookup is returned
func TestDeleteAllByPrincipal_LookupFails(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.FailFind = errors.New("index down")

	_, err := f.dir.DeleteAllByPrincipal(context.Background(), testPrincipal)
	require.Error(t, err)
}

// TestDeleteByID_Idempotent tests deleting the same session twice
func TestDeleteByID_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.addSession(t, "s1", testPrincipal, testNow)

	require.NoError(t, f.dir.DeleteByID(context.Background(), "s1"))
	require.NoError(t, f.dir.DeleteByID(context.Background(), "s1"))
	require.Equal(t, 0, f.repo.Count())
}

// TestSession_ExpiresAt tests the derived expiry
func TestSession_ExpiresAt(t *testing.T) {
	s := &sessions.Session{LastAccessedAt: testNow, MaxInactiveInterval: time.Hour}
	require.Equal(t, testNow.Add(time.Hour), s.ExpiresAt())
	require.False(t, s.Expired(testNow.Add(59*time.Minute)))
	require.True(t, s.Expired(testNow.Add(time.Hour)))
}
