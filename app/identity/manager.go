package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
)

// AgentName names the per-user config directory
const AgentName = "PyDockMateAgent"

// ErrConfigIO marks failures reading or writing local agent state
var ErrConfigIO = errors.New("config io failure")

// Manager handles identity file operations
type Manager struct {
	identityPath string
	logger       zerolog.Logger
}

// NewManager creates a new identity manager. An empty identityPath means the
// location could not be derived; Load then reports absent and Save fails.
func NewManager(identityPath string, logger zerolog.Logger) *Manager {
	return &Manager{
		identityPath: identityPath,
		logger:       logger.With().Str("component", "identity").Logger(),
	}
}

// Path returns the identity file location
func (m *Manager) Path() string {
	return m.identityPath
}

// ConfigDir returns the per-user config directory for the agent, following the
// XDG convention and falling back to ~/.config.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AgentName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("%w: HOME not set", ErrConfigIO)
	}
	return filepath.Join(home, ".config", AgentName), nil
}

// DefaultPath returns the identity file path inside ConfigDir
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// Load loads the identity from file. Any read problem is treated as a host
// that was never registered.
func (m *Manager) Load() (domains.AgentIdentity, bool) {
	if m.identityPath == "" {
		m.logger.Warn().Msg("identity path unknown, treating agent as unregistered")
		return "", false
	}

	data, err := os.ReadFile(m.identityPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("path", m.identityPath).Msg("failed to read identity file")
		}
		return "", false
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		m.logger.Warn().Str("path", m.identityPath).Msg("identity file is empty")
		return "", false
	}

	return domains.AgentIdentity(token), true
}

// Save saves the identity to file, creating parent directories as needed
func (m *Manager) Save(ident domains.AgentIdentity) error {
	if m.identityPath == "" {
		return fmt.Errorf("%w: identity path unknown", ErrConfigIO)
	}
	if ident == "" {
		return fmt.Errorf("%w: refusing to save empty identity", ErrConfigIO)
	}

	dir := filepath.Dir(m.identityPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrConfigIO, err)
	}

	if err := os.WriteFile(m.identityPath, []byte(ident), 0600); err != nil {
		return fmt.Errorf("%w: failed to write identity file: %v", ErrConfigIO, err)
	}

	return nil
}
