package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_StoreGetExistsDeleteRoundTrip(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("hello signed document")
	info, err := storage.Store(ctx, "tenant-1", "", "doc.pdf", bytes.NewReader(content), "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, info)

	exists, err := storage.Exists(ctx, info.Path)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, gotInfo, err := storage.Get(ctx, info.Path)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), gotInfo.Size)

	require.NoError(t, storage.Delete(ctx, info.Path))

	exists, err = storage.Exists(ctx, info.Path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_GetMissingPathReturnsNotFound(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, _, err = storage.Get(context.Background(), "tenant-1/accounts//2026/01/missing.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageNotFound))
}

func TestLocalStorage_RejectsDirectoryTraversal(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, _, err = storage.Get(context.Background(), "../../../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, storage.Delete(context.Background(), "tenant-1/accounts//2026/01/never-existed.pdf"))
}
