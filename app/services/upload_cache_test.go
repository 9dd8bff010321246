package services

import (
	"context"
	"testing"
	"time"

	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *mailmerge.Table {
	row := models.NewCustomData()
	row.Set("Email", "an@example.com")
	row.Set("Họ tên", "An")
	return &mailmerge.Table{Columns: []string{"Email", "Họ tên"}, Rows: []models.CustomData{row}}
}

func TestMemoryUploadCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	cache := NewMemoryUploadCache(30 * time.Minute)
	cache.now = func() time.Time { return now }

	entry, err := cache.Put(ctx, 7, "list.csv", sampleTable())
	require.NoError(t, err)
	assert.NotEmpty(t, entry.Token)
	assert.Equal(t, now.Add(30*time.Minute), entry.ExpiresAt)

	t.Run("owner can read", func(t *testing.T) {
		got, err := cache.Get(ctx, 7, entry.Token)
		require.NoError(t, err)
		assert.Equal(t, "list.csv", got.FileName)
		assert.Equal(t, []string{"Email", "Họ tên"}, got.Table.Columns)
	})

	t.Run("other customer cannot", func(t *testing.T) {
		_, err := cache.Get(ctx, 8, entry.Token)
		assert.ErrorIs(t, err, ErrUploadNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := cache.Get(ctx, 7, "nope")
		assert.ErrorIs(t, err, ErrUploadNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		now = now.Add(31 * time.Minute)
		_, err := cache.Get(ctx, 7, entry.Token)
		assert.ErrorIs(t, err, ErrUploadNotFound)
	})
}

func TestMemoryUploadCacheDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryUploadCache(time.Minute)

	entry, err := cache.Put(ctx, 1, "list.xlsx", sampleTable())
	require.NoError(t, err)
	require.NoError(t, cache.Delete(ctx, entry.Token))

	_, err = cache.Get(ctx, 1, entry.Token)
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestRedisUploadCacheRejectsMalformedToken(t *testing.T) {
	cache := NewRedisUploadCache(nil, "test:", time.Minute)

	_, err := cache.Get(context.Background(), 1, "../../etc")
	assert.ErrorIs(t, err, ErrUploadNotFound)
}
