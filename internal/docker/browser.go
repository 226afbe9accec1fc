package docker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

type BrowserOpts struct {
	Image       string
	DebugPort   int
	Args        []string
	CPULimit    float64
	MemoryLimit int64
	// ReadyTimeout bounds the wait for the DevTools endpoint.
	ReadyTimeout time.Duration
}

// Browser is a running headless-shell container. Close removes it.
type Browser struct {
	cli *client.Client
	id  string
	url string
}

// DevToolsURL is the HTTP endpoint of the container's DevTools server.
func (b *Browser) DevToolsURL() string {
	return b.url
}

func (b *Browser) ID() string {
	return b.id
}

// Logs returns the last lines the browser wrote, for failure diagnostics.
func (b *Browser) Logs(ctx context.Context) string {
	logReader, err := b.cli.ContainerLogs(ctx, b.id, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: "100"})
	if err != nil || logReader == nil {
		return ""
	}
	defer logReader.Close()
	data, _ := io.ReadAll(logReader)
	return string(data)
}

func (b *Browser) Close() error {
	defer b.cli.Close()
	if _, err := b.cli.ContainerRemove(context.Background(), b.id, client.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("removing container %s: %w", b.id, err)
	}
	return nil
}

// StartBrowser launches a browser container on the host network and waits
// until its DevTools endpoint answers.
func StartBrowser(ctx context.Context, opts *BrowserOpts) (*Browser, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	port := strconv.Itoa(opts.DebugPort)
	cmd := append([]string{
		"--remote-debugging-address=127.0.0.1",
		"--remote-debugging-port=" + port,
	}, opts.Args...)

	initTrue := true
	hostCfg := &container.HostConfig{
		NetworkMode: "host",
		Init:        &initTrue,
	}
	if opts.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(opts.CPULimit * 1e9)
	}
	if opts.MemoryLimit > 0 {
		hostCfg.Memory = opts.MemoryLimit
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  opts.Image,
			Cmd:    cmd,
			Labels: map[string]string{"wptnightly": "true"},
		},
		HostConfig: hostCfg,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("creating container: %w", err)
	}
	b := &Browser{cli: cli, id: createResp.ID, url: "http://127.0.0.1:" + port}

	if _, err := cli.ContainerStart(ctx, b.id, client.ContainerStartOptions{}); err != nil {
		b.Close()
		return nil, fmt.Errorf("starting container: %w", err)
	}

	readyTimeout := opts.ReadyTimeout
	if readyTimeout == 0 {
		readyTimeout = 30 * time.Second
	}
	if err := waitForDevTools(ctx, b.url, readyTimeout); err != nil {
		logs := b.Logs(context.Background())
		b.Close()
		return nil, fmt.Errorf("browser container not ready: %w\n%s", err, logs)
	}
	return b, nil
}

func waitForDevTools(ctx context.Context, base string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/json/version", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
