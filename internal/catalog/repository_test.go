package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

func setupTestDB(t *testing.T) *Repository {
	repo, err := NewRepository(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations())
	return repo
}

func TestRepository_ListProductsAfterMigrations(t *testing.T) {
	repo := setupTestDB(t)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 6)

	// newest first
	assert.Equal(t, "6", products[0].ID)
	assert.Equal(t, []string{"sneakers", "casual", "comfort"}, products[0].Tags)
}

func TestRepository_MigrationsAreIdempotent(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.RunMigrations())
}

func TestRepository_GetProduct(t *testing.T) {
	repo := setupTestDB(t)

	product, err := repo.GetProduct(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Designer Jeans", product.Name)
	assert.Equal(t, int64(3999), product.Price)
	assert.Equal(t, "Bottoms", product.Category)

	_, err = repo.GetProduct(context.Background(), "-1")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestService_SearchOverRepository(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, logger.Discard())
	ctx := context.Background()

	products, err := svc.Search(ctx, "jeans")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "2", products[0].ID)

	products, err = svc.Search(ctx, "Comfort")
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "3"}, ids(products))

	products, err = svc.Search(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestService_SearchFoldsNonASCII(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, logger.Discard())
	ctx := context.Background()

	require.NoError(t, repo.InsertProduct(ctx, domain.Product{
		ID:        "7",
		Name:      "ÉTÉ Linen Shirt",
		Price:     2499,
		Category:  "Tops",
		Stock:     4,
		CreatedAt: time.Now(),
	}))

	products, err := svc.Search(ctx, "été")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, ids(products))

	all, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids(Filter(all, Query{Text: "été"})), ids(products))
}

func TestRepository_GetLatestProducts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	products, err := repo.GetLatestProducts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "5"}, ids(products))

	products, err = repo.GetLatestProducts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRepository_InsertProduct(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	err := repo.InsertProduct(ctx, domain.Product{
		ID:        "7",
		Name:      "Wool Scarf",
		Price:     1499,
		Category:  "Accessories",
		CreatedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	product, err := repo.GetProduct(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Wool Scarf", product.Name)
	assert.NotNil(t, product.Tags)
	assert.Empty(t, product.Tags)

	latest, err := repo.GetLatestProducts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "7", latest[0].ID)
}

func TestRepository_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListProducts(ctx)
	assert.Error(t, err)
}
