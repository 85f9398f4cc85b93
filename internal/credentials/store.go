package credentials

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/wardenlabs/warden/internal/observability"
)

// saltBytes is the length of the generated common salt in raw bytes.
const saltBytes = 16

// Store holds the user table. Reads dominate; mutation happens only on the
// administrative path and on full-table reload.
type Store struct {
	mu sync.RWMutex

	commonSalt string
	// private maps username to the bcrypt password verifier.
	private map[string]string
	// public maps username to the derived session token.
	public map[string]string
	// byToken is the reverse index, kept consistent with public at all
	// times.
	byToken map[string]string

	cost   int
	logger observability.Logger

	// dummy is a verifier at the store's cost, compared against for
	// unknown usernames so Verify latency does not reveal which
	// usernames exist.
	dummy []byte
}

// StoreOption is a functional option for the store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger for the store.
func WithStoreLogger(logger observability.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBcryptCost sets the bcrypt cost used for new password verifiers.
func WithBcryptCost(cost int) StoreOption {
	return func(s *Store) {
		s.cost = cost
	}
}

// NewStore creates an empty store with a freshly generated common salt.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		commonSalt: generateSalt(),
		private:    make(map[string]string),
		public:     make(map[string]string),
		byToken:    make(map[string]string),
		cost:       bcrypt.DefaultCost,
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummy = makeDummyVerifier(s.cost)
	return s
}

// makeDummyVerifier hashes an unguessable throwaway value at the given
// cost.
func makeDummyVerifier(cost int) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(generateSalt()), cost)
	if err != nil {
		panic(err)
	}
	return h
}

// generateSalt returns a cryptographically random salt.
func generateSalt() string {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// publicToken derives the session token for a user. The derivation is
// deterministic so tokens can be recomputed after a reload, and keyed by
// the common salt so they cannot be forged without it.
func publicToken(username, privateVerifier, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(username))
	mac.Write([]byte(privateVerifier))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a password against the stored verifier. It fails closed:
// an unknown user and a wrong password are indistinguishable to the caller.
// The bcrypt comparison runs outside the store lock.
func (s *Store) Verify(username, password string) bool {
	s.mu.RLock()
	verifier, ok := s.private[username]
	s.mu.RUnlock()

	if !ok {
		// Burn comparable time so unknown users are not detectable
		// through response latency.
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(verifier), []byte(password)) == nil
}

// IssueSessionToken returns the public token for a registered user.
func (s *Store) IssueSessionToken(username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.public[username]
	if !ok {
		return "", ErrUnknownUser
	}
	return token, nil
}

// ResolveSessionToken maps a public token back to its username. Empty,
// garbled, or stale tokens resolve to nothing; that is "not logged in",
// not an error.
func (s *Store) ResolveSessionToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	username, ok := s.byToken[token]
	return username, ok
}

// Upsert creates or replaces a user. The password is hashed outside the
// store lock; any stale reverse-index entry for the username is removed
// before the new token is installed.
func (s *Store) Upsert(username, password string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if password == "" {
		return ErrEmptyPassword
	}

	verifier, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.public[username]; ok {
		delete(s.byToken, old)
	}

	token := publicToken(username, string(verifier), s.commonSalt)
	s.private[username] = string(verifier)
	s.public[username] = token
	s.byToken[token] = username

	s.logger.Info("user upserted", observability.String("username", username))
	return nil
}

// Delete removes a user from the forward table and the reverse index.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.public[username]
	if !ok {
		return ErrUnknownUser
	}

	delete(s.private, username)
	delete(s.public, username)
	delete(s.byToken, token)

	s.logger.Info("user deleted", observability.String("username", username))
	return nil
}

// List returns all registered usernames, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.public))
	for username := range s.public {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}

// Contains reports whether the username is registered.
func (s *Store) Contains(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.public[username]
	return ok
}

// IsEmpty reports whether the store has no users.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.public) == 0
}

// RotateSalt regenerates the common salt and recomputes every public token
// and the reverse index. All outstanding session cookies become
// unresolvable; this is the emergency global logout.
func (s *Store) RotateSalt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commonSalt = generateSalt()
	s.rederiveLocked()

	s.logger.Info("common salt rotated, all sessions invalidated",
		observability.Int("users", len(s.public)),
	)
}

// rederiveLocked rebuilds public tokens and the reverse index from the
// private table. Callers must hold the write lock.
func (s *Store) rederiveLocked() {
	s.public = make(map[string]string, len(s.private))
	s.byToken = make(map[string]string, len(s.private))
	for username, verifier := range s.private {
		token := publicToken(username, verifier, s.commonSalt)
		s.public[username] = token
		s.byToken[token] = username
	}
}
