package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/docker"
)

// ContainerLauncher gives every session its own headless-shell container,
// which is removed when the session closes.
type ContainerLauncher struct {
	Opts docker.BrowserOpts
	Log  zerolog.Logger
}

func NewContainerLauncher(c config.Container, log zerolog.Logger) *ContainerLauncher {
	return &ContainerLauncher{
		Opts: docker.BrowserOpts{
			Image:       c.Image,
			DebugPort:   c.DebugPort,
			CPULimit:    c.CPULimit,
			MemoryLimit: c.MemoryLimit,
		},
		Log: log,
	}
}

func (l *ContainerLauncher) Launch(ctx context.Context, target config.Target) (Session, error) {
	opts := l.Opts
	opts.Args = append([]string{"--ignore-certificate-errors"}, target.LaunchArgs...)
	b, err := docker.StartBrowser(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}

	s := &chromeSession{}
	s.onClose(b.Close)
	alloc, cancelAlloc := chromedp.NewRemoteAllocator(ctx, b.DevToolsURL())
	s.onClose(cancelFunc(cancelAlloc))
	if err := startTab(s, alloc); err != nil {
		s.Close()
		return nil, fmt.Errorf("attaching to browser container: %w", err)
	}
	l.Log.Debug().Str("target", target.Name).Str("container", b.ID()).Msg("Browser container started")
	return s, nil
}
