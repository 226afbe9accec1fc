package hwinfo

import "context"

func probeGPU(ctx context.Context) (Device, error) {
	return probe(ctx, parseLshw, "lshw", "-C", "display")
}

func probeNPU(context.Context) (Device, error) {
	return Device{}, nil
}
