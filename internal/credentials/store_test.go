package credentials

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(WithBcryptCost(bcrypt.MinCost))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))

	assert.True(t, s.Verify("alice", "s3cret"))
	assert.False(t, s.Verify("alice", "wrong"))
	assert.False(t, s.Verify("nobody", "s3cret"),
		"unknown user must fail closed")
}

func TestSessionTokenRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))
	require.NoError(t, s.Upsert("bob", "hunter2"))

	token, err := s.IssueSessionToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, ok := s.ResolveSessionToken(token)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	_, err = s.IssueSessionToken("nobody")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestResolveSessionTokenGarbage(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))

	_, ok := s.ResolveSessionToken("")
	assert.False(t, ok, "empty token resolves to nothing")

	_, ok = s.ResolveSessionToken("not-a-token")
	assert.False(t, ok)
}

func TestRotateSaltInvalidatesTokens(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))

	old, err := s.IssueSessionToken("alice")
	require.NoError(t, err)

	s.RotateSalt()

	_, ok := s.ResolveSessionToken(old)
	assert.False(t, ok, "pre-rotation token must be stale")

	fresh, err := s.IssueSessionToken("alice")
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	username, ok := s.ResolveSessionToken(fresh)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	// Password verification is untouched by rotation.
	assert.True(t, s.Verify("alice", "s3cret"))
}

func TestUpsertReplacesReverseEntry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "first"))
	old, err := s.IssueSessionToken("alice")
	require.NoError(t, err)

	require.NoError(t, s.Upsert("alice", "second"))

	_, ok := s.ResolveSessionToken(old)
	assert.False(t, ok, "stale reverse-index entry must be removed")

	fresh, err := s.IssueSessionToken("alice")
	require.NoError(t, err)
	username, ok := s.ResolveSessionToken(fresh)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	assert.False(t, s.Verify("alice", "first"))
	assert.True(t, s.Verify("alice", "second"))
}

func TestUpsertValidation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.ErrorIs(t, s.Upsert("", "pw"), ErrEmptyUsername)
	assert.ErrorIs(t, s.Upsert("alice", ""), ErrEmptyPassword)
}

func TestDeleteRemovesBothMappings(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))
	token, err := s.IssueSessionToken("alice")
	require.NoError(t, err)

	require.NoError(t, s.Delete("alice"))

	_, err = s.IssueSessionToken("alice")
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, ok := s.ResolveSessionToken(token)
	assert.False(t, ok, "old token must not resolve after delete")

	assert.ErrorIs(t, s.Delete("alice"), ErrUnknownUser)
}

func TestList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.True(t, s.IsEmpty())
	assert.Empty(t, s.List())

	require.NoError(t, s.Upsert("carol", "pw"))
	require.NoError(t, s.Upsert("alice", "pw"))
	require.NoError(t, s.Upsert("bob", "pw"))

	assert.Equal(t, []string{"alice", "bob", "carol"}, s.List())
	assert.True(t, s.Contains("bob"))
	assert.False(t, s.Contains("dave"))
	assert.False(t, s.IsEmpty())
}

func TestSaveAndLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.yaml")

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))
	require.NoError(t, s.Upsert("bob", "hunter2"))
	require.NoError(t, s.SaveFile(path))

	loaded, err := LoadFile(path, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, loaded.List())
	assert.True(t, loaded.Verify("alice", "s3cret"))

	// Tokens derive from the persisted salt, so they survive the
	// save/load cycle.
	orig, err := s.IssueSessionToken("alice")
	require.NoError(t, err)
	reloaded, err := loaded.IssueSessionToken("alice")
	require.NoError(t, err)
	assert.Equal(t, orig, reloaded)
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestReloadKeepsTableOnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "users.yaml")

	s := newTestStore(t)
	require.NoError(t, s.Upsert("alice", "s3cret"))
	require.NoError(t, s.SaveFile(path))

	err := s.Reload(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	// The previous table keeps serving.
	assert.True(t, s.Verify("alice", "s3cret"))

	require.NoError(t, s.Reload(path))
	assert.True(t, s.Verify("alice", "s3cret"))
}

func TestUnknownUserComparisonMatchesConfiguredCost(t *testing.T) {
	t.Parallel()

	s := NewStore(WithBcryptCost(bcrypt.MinCost))

	cost, err := bcrypt.Cost(s.dummy)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost,
		"unknown-user comparison must burn the same work as a real verifier")

	assert.False(t, s.Verify("ghost", "anything"))
}
