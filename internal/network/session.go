package network

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Session is the persisted identity of this client on the network.
type Session struct {
	SelfID     int64     `yaml:"self_id"`
	Handle     string    `yaml:"handle"`
	SignedInAt time.Time `yaml:"signed_in_at"`
}

// LoadSession reads a session file. A missing file is reported with an
// error satisfying errors.Is(err, fs.ErrNotExist).
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if s.SelfID <= 0 {
		return nil, fmt.Errorf("session file %s has no self_id", path)
	}

	return &s, nil
}

func (s *Session) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	comment := "# botping session, signed in on " + s.SignedInAt.Format(time.RFC3339) + "\n"
	if err := os.WriteFile(path, []byte(comment+string(data)), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}
