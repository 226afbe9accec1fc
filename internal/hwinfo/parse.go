package hwinfo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	pnpDevice = regexp.MustCompile(`DEV_([0-9A-Fa-f]{4})`)
	pnpVendor = regexp.MustCompile(`VEN_([0-9A-Fa-f]{4})`)
	hexID     = regexp.MustCompile(`0x([0-9A-Fa-f]+)`)
	pciPair   = regexp.MustCompile(`\[([0-9A-Fa-f]{4}):([0-9A-Fa-f]{4})\]`)
	driverKV  = regexp.MustCompile(`driver=(\S+)`)
)

type videoController struct {
	Name          string
	DriverVersion string
	Status        string
	PNPDeviceID   string
}

type signedDriver struct {
	DeviceName    string
	DriverVersion string
	DeviceID      string
}

// decodeOneOrMany decodes ConvertTo-Json output, which is a bare object when
// there is a single match and an array otherwise.
func decodeOneOrMany[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, fmt.Errorf("decoding device list: %w", err)
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decoding device: %w", err)
	}
	return []T{one}, nil
}

func submatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// parseVideoControllers picks the first non-Microsoft adapter, preferring
// one whose status is OK.
func parseVideoControllers(data []byte) (Device, error) {
	all, err := decodeOneOrMany[videoController](data)
	if err != nil {
		return Device{}, err
	}
	var picked *videoController
	for i := range all {
		vc := &all[i]
		if strings.Contains(vc.Name, "Microsoft") {
			continue
		}
		if picked == nil {
			picked = vc
		}
		if vc.Status == "OK" {
			picked = vc
			break
		}
	}
	if picked == nil {
		return Device{}, nil
	}
	return Device{
		Name:          picked.Name,
		DriverVersion: picked.DriverVersion,
		DeviceID:      submatch(pnpDevice, picked.PNPDeviceID),
		VendorID:      submatch(pnpVendor, picked.PNPDeviceID),
	}, nil
}

func parseSignedDrivers(data []byte) (Device, error) {
	all, err := decodeOneOrMany[signedDriver](data)
	if err != nil || len(all) == 0 {
		return Device{}, err
	}
	d := all[0]
	return Device{
		Name:          d.DeviceName,
		DriverVersion: d.DriverVersion,
		DeviceID:      submatch(pnpDevice, d.DeviceID),
		VendorID:      submatch(pnpVendor, d.DeviceID),
	}, nil
}

// fields collects "key: value" lines, keeping the first value per key.
func fields(data []byte) map[string]string {
	out := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if _, seen := out[k]; !seen {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

func parseSystemProfiler(data []byte) (Device, error) {
	f := fields(data)
	d := Device{
		Name:          f["chipset model"],
		DriverVersion: f["metal support"],
		DeviceID:      submatch(hexID, f["device id"]),
		VendorID:      submatch(hexID, f["vendor"]),
	}
	if d.VendorID == "" {
		d.VendorID = f["vendor"]
	}
	if d.Empty() {
		return d, fmt.Errorf("no display adapter in system_profiler output")
	}
	return d, nil
}

func parseLshw(data []byte) (Device, error) {
	f := fields(data)
	d := Device{
		Name:     f["product"],
		VendorID: f["vendor"],
	}
	if m := pciPair.FindStringSubmatch(d.Name); m != nil {
		d.VendorID = strings.ToUpper(m[1])
		d.DeviceID = strings.ToUpper(m[2])
		d.Name = strings.TrimSpace(pciPair.ReplaceAllString(d.Name, ""))
	}
	if m := driverKV.FindStringSubmatch(f["configuration"]); m != nil {
		d.DriverVersion = m[1]
	}
	if d.Empty() {
		return d, fmt.Errorf("no display adapter in lshw output")
	}
	return d, nil
}
