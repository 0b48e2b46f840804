package diskspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailable_ReturnsPositiveForTempDir(t *testing.T) {
	free, err := Available(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, int64(0))
}
