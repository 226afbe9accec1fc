// Package hwinfo describes the machine a conformance run executed on.
package hwinfo

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

// Device is one accelerator as reported by the operating system.
type Device struct {
	Name          string `json:"name,omitempty"`
	DriverVersion string `json:"driver_version,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	VendorID      string `json:"vendor_id,omitempty"`
}

func (d Device) Empty() bool {
	return d == Device{}
}

type Environment struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	CPU      string `json:"cpu,omitempty"`
	GPU      Device `json:"gpu"`
	NPU      Device `json:"npu"`
}

// commandOutput runs an external probe. Swapped out in tests.
var commandOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Collect gathers host, CPU, GPU and NPU details. A probe that fails is
// logged and leaves its fields empty.
func Collect(ctx context.Context, log zerolog.Logger) Environment {
	log = log.With().Str("component", "hwinfo").Logger()
	env := Environment{Platform: runtime.GOOS}

	if info, err := host.InfoWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("Getting host info")
	} else {
		env.Hostname = info.Hostname
		if info.Platform != "" {
			env.Platform = strings.TrimSpace(info.OS + " " + info.Platform + " " + info.PlatformVersion)
		}
	}

	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("Getting CPU info")
	} else if len(cpus) > 0 {
		env.CPU = cpuName(cpus[0])
	}

	var err error
	if env.GPU, err = probeGPU(ctx); err != nil {
		log.Warn().Err(err).Msg("Getting GPU info")
	}
	if env.NPU, err = probeNPU(ctx); err != nil {
		log.Warn().Err(err).Msg("Getting NPU info")
	}
	return env
}

func cpuName(c cpu.InfoStat) string {
	name := strings.TrimSpace(c.ModelName)
	if c.VendorID != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(vendorShort(c.VendorID))) {
		name = vendorShort(c.VendorID) + " " + name
	}
	return name
}

func vendorShort(vendorID string) string {
	switch vendorID {
	case "GenuineIntel":
		return "Intel"
	case "AuthenticAMD":
		return "AMD"
	}
	return vendorID
}

func probe(ctx context.Context, parse func([]byte) (Device, error), name string, args ...string) (Device, error) {
	out, err := commandOutput(ctx, name, args...)
	if err != nil {
		return Device{}, fmt.Errorf("running %s: %w", name, err)
	}
	return parse(out)
}
