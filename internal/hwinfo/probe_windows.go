package hwinfo

import "context"

const (
	videoControllerQuery = "Get-CimInstance -ClassName Win32_VideoController | Select-Object Name,DriverVersion,Status,PNPDeviceID | ConvertTo-Json"
	npuDriverQuery       = "Get-CimInstance -ClassName Win32_PnPSignedDriver | Where-Object { $_.DeviceName -like '*AI Boost*' } | Select-Object DeviceName,DriverVersion,DeviceID | ConvertTo-Json"
)

func probeGPU(ctx context.Context) (Device, error) {
	return probe(ctx, parseVideoControllers, "powershell", "-NoProfile", "-Command", videoControllerQuery)
}

func probeNPU(ctx context.Context) (Device, error) {
	return probe(ctx, parseSignedDrivers, "powershell", "-NoProfile", "-Command", npuDriverQuery)
}
