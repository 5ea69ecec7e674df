// Package secret keeps the engine controller secret in the OS keyring.
package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

const (
	// ServiceName for keyring entries
	ServiceName = "outclash"
	// ControllerUser is the keyring account holding the controller secret.
	ControllerUser = "external-controller"
	// EnvOverride takes precedence over the keyring when set.
	EnvOverride = "OUTCLASH_CONTROLLER_SECRET"
)

// Store reads and creates the controller secret.
type Store struct {
	serviceName string
	logger      *zap.Logger
}

// NewStore creates a keyring-backed store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{serviceName: ServiceName, logger: logger}
}

// ControllerSecret returns the secret, generating and saving one on first use.
// When the keyring is unusable an ephemeral secret is returned so the engine
// can still start.
func (s *Store) ControllerSecret() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvOverride)); v != "" {
		return v, nil
	}

	existing, err := keyring.Get(s.serviceName, ControllerUser)
	if err == nil && existing != "" {
		return existing, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Warn("Keyring unavailable, using an ephemeral controller secret", zap.Error(err))
		return uuid.NewString(), nil
	}

	generated := uuid.NewString()
	if err := keyring.Set(s.serviceName, ControllerUser, generated); err != nil {
		return generated, fmt.Errorf("failed to store controller secret in keyring: %w", err)
	}
	return generated, nil
}

// Rotate replaces the stored secret.
func (s *Store) Rotate() (string, error) {
	generated := uuid.NewString()
	if err := keyring.Set(s.serviceName, ControllerUser, generated); err != nil {
		return "", fmt.Errorf("failed to rotate controller secret: %w", err)
	}
	return generated, nil
}

// Delete removes the stored secret. Missing entries are not an error.
func (s *Store) Delete() error {
	if err := keyring.Delete(s.serviceName, ControllerUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete controller secret: %w", err)
	}
	return nil
}
