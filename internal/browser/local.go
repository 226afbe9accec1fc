package browser

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/signalnine/wptnightly/internal/config"
)

// LocalLauncher starts the installed browser with a fresh profile directory
// per target.
type LocalLauncher struct {
	ExecPath string
	Headless bool
	// WorkRoot holds the per-target profile directories; os.TempDir() when empty.
	WorkRoot    string
	SettleDelay time.Duration
	Log         zerolog.Logger
}

// WorkDir is the profile directory used for target under root.
func WorkDir(root, target string) string {
	if root == "" {
		root = os.TempDir()
	}
	h := fnv.New32a()
	h.Write([]byte(target))
	return filepath.Join(root, fmt.Sprintf("wptnightly-%s-%08x", sanitize(target), h.Sum32()))
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func (l *LocalLauncher) Launch(ctx context.Context, target config.Target) (Session, error) {
	dir := WorkDir(l.WorkRoot, target.Name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("%w: resetting profile dir: %v", ErrStructural, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating profile dir: %v", ErrStructural, err)
	}

	alloc, cancelAlloc := chromedp.NewExecAllocator(ctx, l.allocatorOptions(dir, target.LaunchArgs)...)
	s := &chromeSession{}
	s.onClose(cancelFunc(cancelAlloc))
	if err := startTab(s, alloc); err != nil {
		s.Close()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	l.Log.Debug().Str("target", target.Name).Str("profile", dir).Msg("Browser started")

	if l.SettleDelay > 0 {
		select {
		case <-time.After(l.SettleDelay):
		case <-ctx.Done():
			s.Close()
			return nil, fmt.Errorf("waiting for browser to settle: %w", ctx.Err())
		}
	}
	return s, nil
}

func (l *LocalLauncher) allocatorOptions(dir string, args []string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(l.ExecPath),
		chromedp.UserDataDir(dir),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.IgnoreCertErrors,
		chromedp.Flag("headless", l.Headless),
	}
	for _, arg := range args {
		name, value := SplitFlag(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// SplitFlag converts "--name=value" into ("name", "value") and a bare
// "--name" into ("name", true).
func SplitFlag(arg string) (string, any) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}
