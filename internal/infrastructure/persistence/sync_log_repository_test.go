package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSyncLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSyncLogRepository(newTestDatabase(t).DB)

	order := &integration.StorefrontOrder{ID: 1001, Name: "#1001"}
	base := time.Date(2024, 5, 17, 15, 0, 0, 0, time.UTC)
	for i := range 3 {
		log := integration.NewErrorLog("sync_storefront_orders", order, errors.New("boom"))
		log.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(ctx, log))
	}

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	assert.True(t, recent[1].CreatedAt.Equal(base.Add(time.Minute)))

	first := recent[0]
	assert.Equal(t, integration.SyncLogStatusError, first.Status)
	assert.Equal(t, "sync_storefront_orders", first.Method)
	assert.Equal(t, "1001", first.StorefrontOrderID)
	assert.Equal(t, "boom", first.Title)
	assert.Contains(t, first.RequestData, `"id":1001`)

	t.Run("non-positive limit uses the default", func(t *testing.T) {
		all, err := repo.FindRecent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}
