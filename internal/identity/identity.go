// Package identity persists the client's two session tokens, the game
// id and its own participant id, across restarts. It is the
// local-storage analog: losing or clearing the file just forces a
// re-join.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Identity is the locally held session identity
type Identity struct {
	GameID        string `json:"current_game_id"`
	ParticipantID string `json:"current_participant_id"`
}

// IsZero reports whether no identity is held
func (id Identity) IsZero() bool {
	return id.GameID == "" && id.ParticipantID == ""
}

// Store reads and writes the identity file
type Store struct {
	path string
}

// NewStore creates an identity store at path. An empty path falls back
// to the user config directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		path = filepath.Join(configDir, "planning-poker", "identity.json")
	}
	return &Store{path: path}, nil
}

// Load reads the held identity. A missing file yields a zero identity,
// not an error.
func (s *Store) Load() (Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, nil
		}
		return Identity{}, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		// A corrupt identity file is equivalent to no identity.
		return Identity{}, nil
	}
	return id, nil
}

// Save writes the held identity
func (s *Store) Save(id Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}

// Clear drops the held identity
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear identity file: %w", err)
	}
	return nil
}
