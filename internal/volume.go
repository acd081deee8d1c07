package internal

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

type VolumeInfo struct {
	Path  string
	Free  uint64
	Total uint64
}

func (v VolumeInfo) String() string {
	return fmt.Sprintf("%s free of %s", PrettyPrintBytes(v.Free), PrettyPrintBytes(v.Total))
}

// GetVolumeInfo reports the free space of the volume holding path
func GetVolumeInfo(ctx context.Context, path string) (VolumeInfo, error) {
	usage, err := disk.UsageWithContext(ctx, path)

	if err != nil {
		return VolumeInfo{}, fmt.Errorf("failed to read volume usage for %s: %w", path, err)
	}

	return VolumeInfo{Path: usage.Path, Free: usage.Free, Total: usage.Total}, nil
}
