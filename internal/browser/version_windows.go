//go:build windows

package browser

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/signalnine/wptnightly/internal/config"
)

var beaconKeys = map[string]string{
	config.BrowserChromeCanary: `Software\Google\Chrome SxS\BLBeacon`,
	config.BrowserEdgeCanary:   `Software\Microsoft\Edge SxS\BLBeacon`,
}

func installedVersion(ctx context.Context, cfg *config.Config) (string, error) {
	path, ok := beaconKeys[cfg.TargetBrowser]
	if !ok {
		return execVersion(ctx, cfg.ExecutablePath())
	}
	k, err := registry.OpenKey(registry.CURRENT_USER, path, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("opening HKCU\\%s: %w", path, err)
	}
	defer k.Close()
	v, _, err := k.GetStringValue("version")
	if err != nil {
		return "", fmt.Errorf("reading HKCU\\%s version: %w", path, err)
	}
	return v, nil
}
