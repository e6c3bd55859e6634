// Package nvmlbackend answers device description and memory queries for
// NVIDIA GPUs. It is only functional when built with the nvml tag.
package nvmlbackend

import "errors"

const Name = "nvml"

var ErrUnavailable = errors.New("built without NVML support")
