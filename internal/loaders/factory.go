package loaders

import (
	"errors"
	"fmt"

	"github.com/ALEYI17/InfraSight_gputrace/internal/backend/filebackend"
	"github.com/ALEYI17/InfraSight_gputrace/internal/backend/nvmlbackend"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

const (
	BackendFile = "file"
	BackendNVML = "nvml"
)

var ErrUnknownBackend = errors.New("unsupported or unknown GPU backend")

// BackendOptions carries what the individual backends need.
type BackendOptions struct {
	DumpDir string
}

// NewBackend builds the named backend. An empty name means no backend and
// returns nil, nil.
func NewBackend(name string, opts BackendOptions) (types.Backend, error) {
	switch name {
	case "":
		return nil, nil
	case BackendFile:
		b, err := filebackend.New(opts.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("file backend: %w", err)
		}
		return b, nil
	case BackendNVML:
		b, err := nvmlbackend.New()
		if err != nil {
			return nil, fmt.Errorf("nvml backend: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}
