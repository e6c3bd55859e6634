//go:build !nvml

package nvmlbackend

type Backend struct{}

func New() (*Backend, error) {
	return nil, ErrUnavailable
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Close() error { return nil }
