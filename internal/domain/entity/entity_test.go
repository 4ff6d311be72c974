package entity

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestFilterConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(f *FilterConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(f *FilterConfig) {}},
		{name: "bounds ok", mutate: func(f *FilterConfig) { f.MinPrice, f.MaxPrice = f64(10), f64(10) }},
		{name: "min above max", mutate: func(f *FilterConfig) { f.MinPrice, f.MaxPrice = f64(50), f64(10) }, wantErr: true},
		{name: "negative min", mutate: func(f *FilterConfig) { f.MinPrice = f64(-1) }, wantErr: true},
		{name: "bad condition", mutate: func(f *FilterConfig) { f.Condition = "broken" }, wantErr: true},
		{name: "bad sort", mutate: func(f *FilterConfig) { f.SortBy = "random" }, wantErr: true},
		{name: "unknown marketplace", mutate: func(f *FilterConfig) { f.Marketplaces["walmart"] = true }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := DefaultFilterConfig()
			tc.mutate(&f)
			err := f.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidFilter))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterConfig_CloneIsDeep(t *testing.T) {
	f := DefaultFilterConfig()
	f.MinPrice = f64(5)

	c := f.Clone()
	*c.MinPrice = 99
	c.Marketplaces[MarketplaceEbay] = false

	assert.Equal(t, 5.0, *f.MinPrice)
	assert.True(t, f.Marketplaces[MarketplaceEbay])
	assert.Equal(t, []Marketplace{MarketplaceAmazon}, c.EnabledMarketplaces())
}

func TestFilterConfig_MarketplaceKeysAreCaseInsensitive(t *testing.T) {
	var f FilterConfig
	require.NoError(t, json.Unmarshal([]byte(`{"marketplaces":{"AMAZON":false,"ebay":true}}`), &f))
	require.NoError(t, f.Validate())

	assert.False(t, f.Includes(MarketplaceAmazon))
	assert.True(t, f.Includes(MarketplaceEbay))
	assert.Equal(t, []Marketplace{MarketplaceEbay}, f.EnabledMarketplaces())

	n, err := f.Normalize()
	require.NoError(t, err)
	assert.Equal(t, map[Marketplace]bool{MarketplaceAmazon: false, MarketplaceEbay: true}, n.Marketplaces)
	assert.Contains(t, f.Marketplaces, Marketplace("AMAZON"))
}

func TestFilterConfig_NormalizeConflictingSpellings(t *testing.T) {
	f := FilterConfig{Marketplaces: map[Marketplace]bool{"Amazon": true, "amazon": false}}

	n, err := f.Normalize()
	require.NoError(t, err)
	assert.Equal(t, map[Marketplace]bool{MarketplaceAmazon: false}, n.Marketplaces)
	assert.False(t, f.Includes(MarketplaceAmazon))

	_, err = FilterConfig{Marketplaces: map[Marketplace]bool{"etsy": true}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestParseMarketplace(t *testing.T) {
	m, err := ParseMarketplace("AMAZON")
	require.NoError(t, err)
	assert.Equal(t, MarketplaceAmazon, m)

	_, err = ParseMarketplace("etsy")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestProduct_ValidateAndDiscount(t *testing.T) {
	p := Product{ID: "p1", Price: 75, Rating: 4.2, OriginalPrice: f64(100)}
	assert.NoError(t, p.Validate())
	assert.Equal(t, 25, p.DiscountPercent())

	p.OriginalPrice = f64(50)
	assert.Equal(t, 0, p.DiscountPercent())

	p.Rating = 7
	assert.ErrorIs(t, p.Validate(), ErrInvalidProduct)

	now := time.Now()
	p.Rating = 3
	p.PriceHistory = []PricePoint{{Date: now, Price: 1}, {Date: now.Add(-time.Hour), Price: 2}}
	assert.ErrorIs(t, p.Validate(), ErrInvalidProduct)
}

func TestCart_AddMergesAdditively(t *testing.T) {
	now := time.Now().UTC()
	c := NewCart()
	p := Product{ID: "p1", Price: 10, Marketplace: MarketplaceAmazon}

	require.NoError(t, c.AddItem(p, 1, now))
	require.NoError(t, c.AddItem(p, 2, now))
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 30.0, c.TotalPrice())

	assert.ErrorIs(t, c.AddItem(p, 0, now), ErrInvalidQuantity)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	now := time.Now().UTC()
	c := NewCart()
	require.NoError(t, c.AddItem(Product{ID: "a", Price: 1, Marketplace: MarketplaceAmazon}, 1, now))
	require.NoError(t, c.AddItem(Product{ID: "b", Price: 2, Marketplace: MarketplaceEbay}, 4, now))

	assert.False(t, c.UpdateItemQuantity("missing", 3, now))
	assert.True(t, c.UpdateItemQuantity("b", 2, now))
	assert.Equal(t, 3, c.TotalItems())

	grouped := c.ItemsByMarketplace()
	assert.Len(t, grouped[MarketplaceAmazon], 1)
	assert.Len(t, grouped[MarketplaceEbay], 1)

	assert.True(t, c.UpdateItemQuantity("a", 0, now))
	assert.False(t, c.RemoveItem("a", now))
	assert.True(t, c.RemoveItem("b", now))
	assert.Empty(t, c.Items)
}

func TestCart_Sanitize(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{Product: Product{ID: "a"}, Quantity: 1},
		{Product: Product{ID: ""}, Quantity: 1},
		{Product: Product{ID: "b"}, Quantity: 0},
		{Product: Product{ID: "a"}, Quantity: 5},
	}}
	assert.True(t, c.Sanitize())
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.False(t, c.Sanitize())
}

func TestFavoriteSet(t *testing.T) {
	s := NewFavoriteSet("a", "b", "a")
	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.False(t, s.Add("b"))
	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 1, s.Len())
}

func TestNewPriceAlert(t *testing.T) {
	now := time.Now().UTC()
	p := Product{ID: "p1", Title: "Lamp", Price: 40}

	_, err := NewPriceAlert(Guest(), p, 30, now)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewPriceAlert(Identity{UserID: "u1"}, p, 0, now)
	assert.ErrorIs(t, err, ErrInvalidTargetPrice)

	a, err := NewPriceAlert(Identity{UserID: "u1", Email: "u1@example.com"}, p, 30, now)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.ShouldTrigger(40))
	assert.True(t, a.ShouldTrigger(30))

	a.MarkTriggered(now)
	assert.False(t, a.ShouldTrigger(10))
	require.NotNil(t, a.TriggeredAt)
}
