package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	content := []byte("%PDF-1.4 payload")
	require.NoError(t, store.Save("kb/1_handbook.pdf", content))

	got, err := store.Read("kb/1_handbook.pdf")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Delete("kb/1_handbook.pdf"))
	_, err = store.Read("kb/1_handbook.pdf")
	assert.Error(t, err)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.pdf", "kb/../../etc/passwd", "/etc/passwd"} {
		assert.Error(t, store.Save(key, []byte("x")), key)
	}
}

func TestChecksumIsStableHex(t *testing.T) {
	a := Checksum([]byte("same bytes"))
	b := Checksum([]byte("same bytes"))
	c := Checksum([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
