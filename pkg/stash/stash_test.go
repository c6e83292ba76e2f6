package stash_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"tabiyaku/pkg/stash"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey_UniquePerCall(t *testing.T) {
	now := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)

	a := stash.NewKey("menu.JPG", now)
	b := stash.NewKey("menu.JPG", now)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "uploads/2024/03/09/"), a)
	assert.True(t, strings.HasSuffix(a, ".jpg"), a)
}

func TestNewKey_DropsClientPath(t *testing.T) {
	key := stash.NewKey(`C:\Users\me\..\ramen.png`, time.Now())
	assert.NotContains(t, key, "..")
	assert.NotContains(t, key, "Users")
	assert.True(t, strings.HasSuffix(key, ".png"))
}

func TestLocal_PutGet(t *testing.T) {
	ctx := context.Background()
	l, err := stash.NewLocal(t.TempDir())
	require.NoError(t, err)

	key := stash.NewKey("sushi.png", time.Now())
	ref, err := l.Put(ctx, key, "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, key, ref)

	data, err := l.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestLocal_Delete(t *testing.T) {
	ctx := context.Background()
	l, err := stash.NewLocal(t.TempDir())
	require.NoError(t, err)

	ref, err := l.Put(ctx, "uploads/ramen.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	require.NoError(t, l.Delete(ctx, ref))

	_, err = l.Get(ctx, ref)
	assert.ErrorIs(t, err, stash.ErrObjectNotFound)
	assert.NoError(t, l.Delete(ctx, ref), "deleting twice is fine")
	assert.Error(t, l.Delete(ctx, "../outside.jpg"))
}

func TestLocal_PutDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	l, err := stash.NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Put(ctx, "uploads/a.png", "image/png", []byte("first"))
	require.NoError(t, err)
	_, err = l.Put(ctx, "uploads/a.png", "image/png", []byte("second"))
	assert.Error(t, err)

	data, err := l.Get(ctx, "uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
}

func TestLocal_GetMissingAndTraversal(t *testing.T) {
	ctx := context.Background()
	l, err := stash.NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Get(ctx, "uploads/missing.png")
	assert.ErrorIs(t, err, stash.ErrObjectNotFound)

	_, err = l.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid object key")
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := stash.NewS3(context.Background(), stash.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
