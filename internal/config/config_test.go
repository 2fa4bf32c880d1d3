package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogFromEnv(t *testing.T) {
	t.Setenv("PRODUCT_CATALOG_JSON", `{"tokens_50":{"price_id":"price_50","kind":"token_pack","tokens":50}}`)

	catalog := loadCatalog()
	require.Len(t, catalog, 1)
	item := catalog["tokens_50"]
	assert.Equal(t, "price_50", item.PriceID)
	assert.Equal(t, "token_pack", item.Kind)
	assert.Equal(t, int64(50), item.Tokens)
}

func TestLoadCatalogFallsBackOnInvalidJSON(t *testing.T) {
	t.Setenv("PRODUCT_CATALOG_JSON", `{not json`)

	catalog := loadCatalog()
	assert.Equal(t, defaultCatalog(), catalog)
}

func TestLoadCatalogDefault(t *testing.T) {
	t.Setenv("PRODUCT_CATALOG_JSON", "")

	catalog := loadCatalog()
	assert.Contains(t, catalog, "plan_pro")
	assert.Equal(t, "plan", catalog["plan_pro"].Kind)
	assert.Equal(t, "pro", catalog["plan_pro"].PlanSlug)
}
