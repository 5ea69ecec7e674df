// Package scheme registers the application as the handler of its custom URL
// schemes with the operating system.
package scheme

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/deeplink"
	"github.com/outclash/outclash-go/internal/logs"
)

// Register makes the running executable the handler of every scheme in
// deeplink.Schemes.
func Register(ctx context.Context, logger *zap.Logger) error {
	logger = logs.For(logger, logs.TypeSetup)

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	if err := register(ctx, exe, deeplink.Schemes); err != nil {
		return err
	}
	logger.Info("URL schemes registered", zap.Strings("schemes", deeplink.Schemes), zap.String("exe", exe))
	return nil
}
