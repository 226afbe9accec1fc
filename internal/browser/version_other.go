//go:build !windows

package browser

import (
	"context"

	"github.com/signalnine/wptnightly/internal/config"
)

func installedVersion(ctx context.Context, cfg *config.Config) (string, error) {
	return execVersion(ctx, cfg.ExecutablePath())
}
