package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
)

func ptr(v float64) *float64 { return &v }

func TestBuildProductFilter_DefaultIsEmpty(t *testing.T) {
	assert.Empty(t, buildProductFilter(entity.DefaultFilterConfig()))
}

func TestBuildProductFilter_TextQueryIsEscapedAndCaseInsensitive(t *testing.T) {
	f := entity.DefaultFilterConfig()
	f.Query = "  usb-c (2m)  "

	got := buildProductFilter(f)

	or, ok := got["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 3)
	want := primitive.Regex{Pattern: `usb-c \(2m\)`, Options: "i"}
	assert.Equal(t, bson.M{"title": want}, or[0])
	assert.Equal(t, bson.M{"description": want}, or[1])
	assert.Equal(t, bson.M{"category": want}, or[2])
}

func TestBuildProductFilter_Marketplaces(t *testing.T) {
	f := entity.DefaultFilterConfig()
	f.Marketplaces[entity.MarketplaceEbay] = false

	got := buildProductFilter(f)
	assert.Equal(t, bson.M{"$in": bson.A{"amazon"}}, got["marketplace"])

	f.Marketplaces[entity.MarketplaceAmazon] = false
	got = buildProductFilter(f)
	assert.Equal(t, bson.M{"$in": bson.A{}}, got["marketplace"])
}

func TestBuildProductFilter_ConditionCategoryAndPrice(t *testing.T) {
	f := entity.DefaultFilterConfig()
	f.Condition = "used"
	f.Category = "Audio"
	f.MinPrice = ptr(10)
	f.MaxPrice = ptr(99.5)

	got := buildProductFilter(f)

	assert.Equal(t, "used", got["condition"])
	assert.Equal(t, primitive.Regex{Pattern: "^Audio$", Options: "i"}, got["category"])
	assert.Equal(t, bson.M{"$gte": 10.0, "$lte": 99.5}, got["price"])
}

func TestBuildProductFilter_OnlyMinPrice(t *testing.T) {
	f := entity.DefaultFilterConfig()
	f.MinPrice = ptr(0)

	got := buildProductFilter(f)
	assert.Equal(t, bson.M{"$gte": 0.0}, got["price"])
}

func TestBuildProductSort(t *testing.T) {
	tests := []struct {
		key  entity.SortKey
		want bson.D
	}{
		{entity.SortPriceAsc, bson.D{{Key: "price", Value: 1}, {Key: "seq", Value: 1}}},
		{entity.SortPriceDesc, bson.D{{Key: "price", Value: -1}, {Key: "seq", Value: 1}}},
		{entity.SortRatingDesc, bson.D{{Key: "rating", Value: -1}, {Key: "seq", Value: 1}}},
		{entity.SortShippingAsc, bson.D{{Key: "shipping_estimate", Value: 1}, {Key: "seq", Value: 1}}},
		{entity.SortNewest, bson.D{{Key: "seq", Value: 1}}},
		{entity.SortKey("bogus"), bson.D{{Key: "seq", Value: 1}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, buildProductSort(tt.key))
		})
	}
}

func TestProductDocumentRoundTrip(t *testing.T) {
	orig := 120.0
	p := entity.Product{
		ID:            "amz_1",
		Marketplace:   entity.MarketplaceAmazon,
		Title:         "Headphones",
		Price:         99,
		OriginalPrice: &orig,
		Condition:     "new",
		Category:      "Audio",
	}
	doc := toProductDocument(p, 3)
	assert.Equal(t, 3, doc.Seq)
	assert.Equal(t, p, doc.toDomain())
}
