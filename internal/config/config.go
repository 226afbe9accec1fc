package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

const (
	BrowserChromeCanary = "Chrome Canary"
	BrowserEdgeCanary   = "Edge Canary"

	DefaultTestURL = "https://wpt.live/webnn/conformance_tests/"
)

type Config struct {
	TargetBrowser      string              `yaml:"targetBrowser"`
	BrowserPath        map[string]string   `yaml:"browserPath"`
	BrowserLaunchArgs  map[string][]string `yaml:"browserLaunchArgs"`
	TargetBackendOrEP  []string            `yaml:"targetBackendOrEP"`
	TestURL            string              `yaml:"testUrl"`
	ResultDir          string              `yaml:"resultDir"`
	VersionFile        string              `yaml:"versionFile"`
	TestTimeoutSeconds int                 `yaml:"testTimeoutSeconds"`
	LaunchDelaySeconds *int                `yaml:"launchDelaySeconds"`
	Headless           bool                `yaml:"headless"`
	Container          Container           `yaml:"container"`
	Mail               Mail                `yaml:"mail"`

	targets []Target
}

// Container runs every session in a throwaway headless-shell container
// instead of the locally installed browser.
type Container struct {
	Enabled     bool    `yaml:"enabled"`
	Image       string  `yaml:"image"`
	DebugPort   int     `yaml:"debugPort"`
	CPULimit    float64 `yaml:"cpuLimit"`
	MemoryLimit int64   `yaml:"memoryLimit"`
}

type Mail struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	TLS      bool     `yaml:"tls"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

func (m Mail) Enabled() bool {
	return m.Host != "" && m.From != "" && len(m.To) > 0
}

type DeviceType string

const (
	DeviceCPU DeviceType = "cpu"
	DeviceGPU DeviceType = "gpu"
	DeviceNPU DeviceType = "npu"
)

// Target is one backend/device configuration the suite runs under.
type Target struct {
	Name       string
	Device     DeviceType
	LaunchArgs []string
}

// DeviceFor maps a target name such as "OV GPU" or "WebGPU" to the device
// query parameter the test pages understand.
func DeviceFor(name string) (DeviceType, error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty target name")
	}
	token := strings.ToLower(fields[len(fields)-1])
	token = strings.Replace(token, "webgpu", "gpu", 1)
	switch d := DeviceType(token); d {
	case DeviceCPU, DeviceGPU, DeviceNPU:
		return d, nil
	}
	return "", fmt.Errorf("target %q: unknown device %q", name, token)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data, err = hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	replacePlaceholders(&cfg, raw)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

var placeholderRe = regexp.MustCompile(`ToReplaceBy\w+`)

// replacePlaceholders substitutes "ToReplaceByOrtLibraryPath" style tokens in
// launch args with the value of the matching top-level key ("ortLibraryPath").
// Tokens without a matching non-empty value are left as they are.
func replacePlaceholders(cfg *Config, raw map[string]any) {
	for name, args := range cfg.BrowserLaunchArgs {
		for i, arg := range args {
			token := placeholderRe.FindString(arg)
			if token == "" {
				continue
			}
			key := lowerFirst(strings.TrimPrefix(token, "ToReplaceBy"))
			value, ok := raw[key]
			if !ok || value == nil {
				continue
			}
			s := fmt.Sprint(value)
			if s == "" {
				continue
			}
			args[i] = strings.Replace(arg, token, s, 1)
		}
		cfg.BrowserLaunchArgs[name] = args
	}
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func validate(cfg *Config) error {
	if cfg.TargetBrowser == "" {
		return fmt.Errorf("targetBrowser is required")
	}
	if !cfg.Container.Enabled && cfg.BrowserPath[cfg.TargetBrowser] == "" {
		return fmt.Errorf("browserPath for %q is required", cfg.TargetBrowser)
	}
	if len(cfg.TargetBackendOrEP) == 0 {
		return fmt.Errorf("no targets defined in targetBackendOrEP")
	}
	cfg.targets = cfg.targets[:0]
	for i, name := range cfg.TargetBackendOrEP {
		if name == "" {
			return fmt.Errorf("target %d: name is required", i)
		}
		device, err := DeviceFor(name)
		if err != nil {
			return err
		}
		args := append([]string(nil), cfg.BrowserLaunchArgs[name]...)
		cfg.targets = append(cfg.targets, Target{Name: name, Device: device, LaunchArgs: args})
	}
	if cfg.TestURL == "" {
		cfg.TestURL = DefaultTestURL
	}
	if cfg.ResultDir == "" {
		cfg.ResultDir = "result"
	}
	if cfg.VersionFile == "" {
		cfg.VersionFile = "LastTestedVersion"
	}
	if cfg.TestTimeoutSeconds == 0 {
		cfg.TestTimeoutSeconds = 300
	}
	if cfg.TestTimeoutSeconds < 0 {
		return fmt.Errorf("testTimeoutSeconds must be positive")
	}
	if cfg.LaunchDelaySeconds == nil {
		delay := 3
		cfg.LaunchDelaySeconds = &delay
	}
	if *cfg.LaunchDelaySeconds < 0 {
		return fmt.Errorf("launchDelaySeconds must not be negative")
	}
	if cfg.Container.Enabled {
		if cfg.Container.Image == "" {
			cfg.Container.Image = "chromedp/headless-shell:latest"
		}
		if cfg.Container.DebugPort == 0 {
			cfg.Container.DebugPort = 9222
		}
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 25
	}
	return nil
}

// Targets returns the configured targets in declared order, with devices
// already resolved.
func (c *Config) Targets() []Target {
	return c.targets
}

func (c *Config) ExecutablePath() string {
	return c.BrowserPath[c.TargetBrowser]
}

func (c *Config) TestTimeout() time.Duration {
	return time.Duration(c.TestTimeoutSeconds) * time.Second
}

func (c *Config) LaunchDelay() time.Duration {
	if c.LaunchDelaySeconds == nil {
		return 0
	}
	return time.Duration(*c.LaunchDelaySeconds) * time.Second
}

// ProcessNames lists the executable names to force-terminate after a run.
func (c *Config) ProcessNames() []string {
	switch c.TargetBrowser {
	case BrowserChromeCanary:
		return []string{"chrome.exe", "chrome"}
	case BrowserEdgeCanary:
		return []string{"msedge.exe", "msedge"}
	}
	if p := c.ExecutablePath(); p != "" {
		return []string{filepath.Base(p)}
	}
	return nil
}

// Summarize renders the config for debug logging with the mail password
// masked.
func (c *Config) Summarize() string {
	masked := *c
	if masked.Mail.Password != "" {
		masked.Mail.Password = "***"
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return err.Error()
	}
	return buf.String()
}
