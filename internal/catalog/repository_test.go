package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db/models"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

func TestRepositoryListFiltersInactiveAndCategory(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	repo := NewRepository(client.DB())

	rows := []*models.Product{
		{ID: uuid.New(), Name: "Mug", Category: "mugs", Price: decimal.NewFromInt(10), IsActive: true},
		{ID: uuid.New(), Name: "Retired Mug", Category: "mugs", Price: decimal.NewFromInt(8), IsActive: false},
		{ID: uuid.New(), Name: "Shirt", Category: "shirts", Price: decimal.NewFromInt(20), IsActive: true},
	}
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := repo.Create(tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	listed, total, err := repo.List(context.Background(), ListProductsInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, listed, 2)
	for _, row := range listed {
		assert.True(t, row.IsActive)
	}

	mugs, total, err := repo.List(context.Background(), ListProductsInput{Category: "mugs"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mugs, 1)
	assert.Equal(t, "Mug", mugs[0].Name)
}

func TestRepositoryUpdateVariantsWritesOnlyColumn(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	repo := NewRepository(client.DB())
	stored := mustCreateTestProduct(t, client, types.VariantMediaList{
		{Color: "red", Stock: 5},
	})

	refreshed := types.VariantMediaList{
		{Color: "red", Stock: 5, Videos: []types.VideoRef{types.LegacyVideoRef("1700000000000-clip.mp4")}},
	}
	require.NoError(t, repo.UpdateVariants(context.Background(), stored.ID, refreshed))

	reloaded, err := repo.FindByID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Mug", reloaded.Name)
	require.Len(t, reloaded.Variants, 1)
	require.Len(t, reloaded.Variants[0].Videos, 1)
	assert.Equal(t, "1700000000000-clip.mp4", reloaded.Variants[0].Videos[0].ObjectKey())
}

func TestRepositoryDeleteRemovesRow(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	repo := NewRepository(client.DB())
	stored := mustCreateTestProduct(t, client, nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.Delete(tx, stored.ID)
	})
	require.NoError(t, err)

	_, err = repo.FindByID(context.Background(), stored.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
