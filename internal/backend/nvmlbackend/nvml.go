//go:build nvml

package nvmlbackend

import (
	"fmt"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/zap"
)

// Backend answers device queries through NVML.
type Backend struct {
	logger *zap.Logger
}

func New() (*Backend, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("NVML init failed: %v", nvml.ErrorString(ret))
	}
	return &Backend{logger: logutil.GetLogger().With(zap.String("component", "nvmlbackend"))}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) device(index int) (nvml.Device, bool) {
	dev, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		b.logger.Debug("device handle", zap.Int("device", index), zap.String("error", nvml.ErrorString(ret)))
		return nil, false
	}
	return dev, true
}

func (b *Backend) DeviceDescription(device int) string {
	dev, ok := b.device(device)
	if !ok {
		return ""
	}
	name, ret := dev.GetName()
	if ret != nvml.SUCCESS {
		return ""
	}
	return name
}

func (b *Backend) DeviceMemory(device int) (free, total uint64) {
	dev, ok := b.device(device)
	if !ok {
		return 0, 0
	}
	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return 0, 0
	}
	return mem.Free, mem.Total
}

func (b *Backend) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML shutdown failed: %v", nvml.ErrorString(ret))
	}
	return nil
}
