// Package sessions persists named server sessions. Configs live in a YAML
// file; passwords live in the keyring and never touch the file.
package sessions

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// FileName is the session file inside the config directory
const FileName = "sessions.yaml"

// Store is the list of saved sessions
type Store struct {
	mu        sync.Mutex
	path      string
	sessions  []models.ConnectionConfig
	passwords *PasswordStore
	logger    *slog.Logger
}

// NewStore loads the session file of configDir, if it exists. passwords may be nil,
// in which case passwords are not persisted.
func NewStore(configDir string, passwords *PasswordStore, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		path:      filepath.Join(configDir, FileName),
		passwords: passwords,
		logger:    logger,
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load sessions: %w", err)
		}
	}
	return s, nil
}

// Path returns the session file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}
	var sessions []models.ConnectionConfig
	if err := yaml.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}
	s.sessions = sessions
	return nil
}

func (s *Store) save() error {
	data, err := yaml.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// List returns the saved sessions without passwords
func (s *Store) List() []models.ConnectionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConnectionConfig(nil), s.sessions...)
}

// Len returns the number of saved sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Get returns a session with its password filled in from the keyring
func (s *Store) Get(id string) (models.ConnectionConfig, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return models.ConnectionConfig{}, &models.NotFoundError{Kind: "Session", Name: id}
	}
	cfg := s.sessions[i]
	s.mu.Unlock()

	return s.WithPassword(cfg), nil
}

// WithPassword fills in the stored password, leaving cfg unchanged when none is stored
func (s *Store) WithPassword(cfg models.ConnectionConfig) models.ConnectionConfig {
	if s.passwords == nil || cfg.Password != "" {
		return cfg
	}
	password, err := s.passwords.Get(cfg.UUID)
	switch {
	case err == nil:
		cfg.Password = password
	case !errors.Is(err, ErrPasswordNotFound):
		s.logger.Warn("password lookup failed", slog.String("session", cfg.Name), slog.String("error", err.Error()))
	}
	return cfg
}

func (s *Store) index(id string) int {
	for i := range s.sessions {
		if s.sessions[i].UUID == id {
			return i
		}
	}
	return -1
}

// Create saves a new session, assigning a UUID when it has none
func (s *Store) Create(cfg models.ConnectionConfig) (models.ConnectionConfig, error) {
	if cfg.UUID == "" {
		cfg.UUID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(cfg.UUID) >= 0 {
		return models.ConnectionConfig{}, fmt.Errorf("session %s already exists", cfg.UUID)
	}

	s.storePassword(cfg)
	stored := cfg
	stored.Password = ""
	s.sessions = append(s.sessions, stored)
	if err := s.save(); err != nil {
		s.sessions = s.sessions[:len(s.sessions)-1]
		return models.ConnectionConfig{}, err
	}
	s.logger.Info("session created", slog.String("session", cfg.Name), slog.String("uuid", cfg.UUID))
	return cfg, nil
}

// Update replaces a saved session with the same UUID
func (s *Store) Update(cfg models.ConnectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(cfg.UUID)
	if i < 0 {
		return &models.NotFoundError{Kind: "Session", Name: cfg.UUID}
	}

	s.storePassword(cfg)
	prev := s.sessions[i]
	stored := cfg
	stored.Password = ""
	s.sessions[i] = stored
	if err := s.save(); err != nil {
		s.sessions[i] = prev
		return err
	}
	return nil
}

// Delete removes a saved session and its password
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return &models.NotFoundError{Kind: "Session", Name: id}
	}
	if s.passwords != nil {
		if err := s.passwords.Delete(id); err != nil {
			s.logger.Warn("password delete failed", slog.String("uuid", id), slog.String("error", err.Error()))
		}
	}
	s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
	return s.save()
}

// storePassword writes the password to the keyring; failures are logged and
// the session is still saved
func (s *Store) storePassword(cfg models.ConnectionConfig) {
	if s.passwords == nil {
		return
	}
	if err := s.passwords.Save(cfg); err != nil {
		s.logger.Warn("password not saved", slog.String("session", cfg.Name), slog.String("error", err.Error()))
	}
}
