package loaders

import (
	"testing"

	"github.com/ALEYI17/InfraSight_gputrace/internal/backend/filebackend"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("", BackendOptions{})
	assert.NoError(t, err)
	assert.Nil(t, b)

	_, err = NewBackend("cuda", BackendOptions{})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = NewBackend(BackendFile, BackendOptions{})
	assert.ErrorIs(t, err, filebackend.ErrNoDumpDir)

	b, err = NewBackend(BackendFile, BackendOptions{DumpDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, BackendFile, b.Name())

	caps := NewResolver(func() types.Backend { return b }).Resolve()
	assert.Equal(t, 6, caps.Count())
}
