package db

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartSchemaSourceVersions(t *testing.T) {
	src, err := cartSchemaSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	versions := []uint{first}
	for v := first; ; {
		next, err := src.Next(v)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		versions = append(versions, next)
		v = next
	}
	assert.Equal(t, []uint{1, 2}, versions)

	for _, v := range versions {
		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "version %d has no up migration", v)
		body, err := io.ReadAll(up)
		up.Close()
		require.NoError(t, err)
		assert.NotEmpty(t, body)

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has no down migration", v)
		down.Close()
	}
}
