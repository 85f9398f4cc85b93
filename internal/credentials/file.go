package credentials

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wardenlabs/warden/internal/observability"
)

// fileSchema is the on-disk form of the user table. Only the common salt
// and the private verifiers are persisted; public tokens and the reverse
// index are derived at load.
type fileSchema struct {
	CommonSalt string            `yaml:"common_salt"`
	Users      map[string]string `yaml:"users"`
}

// LoadFile reads a user table from a YAML file. A missing common salt is
// generated, so the file can start as a bare user list.
func LoadFile(path string, opts ...StoreOption) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file %s: %w", path, err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}

	s := NewStore(opts...)
	if schema.CommonSalt != "" {
		s.commonSalt = schema.CommonSalt
	}
	for username, verifier := range schema.Users {
		if username == "" {
			return nil, fmt.Errorf("users file %s: %w", path, ErrEmptyUsername)
		}
		s.private[username] = verifier
	}
	s.rederiveLocked()

	return s, nil
}

// SaveFile writes the user table to a YAML file, readable only by the
// owner.
func (s *Store) SaveFile(path string) error {
	s.mu.RLock()
	schema := fileSchema{
		CommonSalt: s.commonSalt,
		Users:      make(map[string]string, len(s.private)),
	}
	for username, verifier := range s.private {
		schema.Users[username] = verifier
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to serialize users file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write users file %s: %w", path, err)
	}
	return nil
}

// Reload replaces the whole table from the file. On error the current
// table keeps serving; in-flight reads continue against the snapshot they
// captured.
func (s *Store) Reload(path string) error {
	fresh, err := LoadFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.commonSalt = fresh.commonSalt
	s.private = fresh.private
	s.public = fresh.public
	s.byToken = fresh.byToken
	s.mu.Unlock()

	s.logger.Info("user table reloaded",
		observability.String("path", path),
		observability.Int("users", len(fresh.public)),
	)
	return nil
}
