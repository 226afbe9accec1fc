package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"regexp"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/docker"
)

var versionRe = regexp.MustCompile(`\d+(?:\.\d+){1,3}`)

// ParseVersion extracts the dotted build number from tool output such as
// "Google Chrome 133.0.6900.0 canary" or "HeadlessChrome/131.0.6778.85".
func ParseVersion(s string) (string, error) {
	v := versionRe.FindString(s)
	if v == "" {
		return "", fmt.Errorf("no version in %q", s)
	}
	return v, nil
}

// ProbeVersion returns the build of the browser under test.
func ProbeVersion(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Container.Enabled {
		return containerVersion(ctx, cfg.Container)
	}
	return installedVersion(ctx, cfg)
}

func execVersion(ctx context.Context, execPath string) (string, error) {
	out, err := exec.CommandContext(ctx, execPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("querying %s version: %w", execPath, err)
	}
	return ParseVersion(string(out))
}

func containerVersion(ctx context.Context, c config.Container) (string, error) {
	b, err := docker.StartBrowser(ctx, &docker.BrowserOpts{Image: c.Image, DebugPort: c.DebugPort})
	if err != nil {
		return "", err
	}
	defer b.Close()
	return devToolsVersion(ctx, b.DevToolsURL())
}

func devToolsVersion(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying devtools version: %w", err)
	}
	defer resp.Body.Close()
	var info struct {
		Browser string `json:"Browser"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding devtools version: %w", err)
	}
	return ParseVersion(info.Browser)
}
