package normalize

import (
	"testing"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
)

func testBounds() Bounds {
	return Bounds{Min: 0.1, Max: 0.5, Default: 0.3}
}

func testMapper() *CategoryMapper {
	return NewCategoryMapper(map[string]string{
		"fashion": "Fashion & Apparel",
		"digital": "Digital & Electronics",
	})
}

func TestSalePriceRounding(t *testing.T) {
	cases := []struct {
		cost   int64
		margin float64
		want   int64
	}{
		{1000, 0.3, 1300},
		{500, 0.5, 750},
		{999, 0.3, 1299}, // 1298.7 rounds up
		{1, 0.3, 1},      // 1.3 rounds down
		{10000, 0.1, 11000},
	}
	for _, c := range cases {
		if got := SalePrice(c.cost, c.margin); got != c.want {
			t.Errorf("SalePrice(%d, %v) = %d, want %d", c.cost, c.margin, got, c.want)
		}
	}
}

func TestNormalizeDefaultMargin(t *testing.T) {
	raw := supplier.RawItem{Key: "W1", Name: "Wool Scarf", CategoryName: "fashion", Cost: 1000, StockQuantity: 5}

	item, err := Normalize(raw, 0, testBounds(), testMapper())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if item.SalePrice != 1300 {
		t.Errorf("sale price = %d, want 1300", item.SalePrice)
	}
	if item.MarginRate != 0.3 {
		t.Errorf("margin rate = %v, want default 0.3", item.MarginRate)
	}
}

func TestNormalizeMarginBelowFloor(t *testing.T) {
	raw := supplier.RawItem{Key: "W2", Name: "Wool Scarf", CategoryName: "fashion", Cost: 1000}

	_, err := Normalize(raw, 0.05, testBounds(), testMapper())
	if err == nil {
		t.Fatal("expected rejection for margin below floor")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeMarginBelowFloor {
		t.Errorf("error code = %s, want %s", code, apperrors.CodeMarginBelowFloor)
	}
}

func TestNormalizeMarginClampedToCeiling(t *testing.T) {
	raw := supplier.RawItem{Key: "W3", Name: "Wool Scarf", CategoryName: "fashion", Cost: 1000}

	item, err := Normalize(raw, 0.7, testBounds(), testMapper())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if item.MarginRate != 0.5 {
		t.Errorf("margin rate = %v, want clamped 0.5", item.MarginRate)
	}
	if item.SalePrice != 1500 {
		t.Errorf("sale price = %d, want 1500", item.SalePrice)
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	bounds := testBounds()
	cats := testMapper()

	cases := []struct {
		name string
		raw  supplier.RawItem
	}{
		{"missing name", supplier.RawItem{Key: "X", CategoryName: "fashion", Cost: 100}},
		{"zero cost", supplier.RawItem{Key: "X", Name: "Thing", CategoryName: "fashion"}},
		{"negative cost", supplier.RawItem{Key: "X", Name: "Thing", CategoryName: "fashion", Cost: -5}},
		{"missing category", supplier.RawItem{Key: "X", Name: "Thing", Cost: 100}},
	}
	for _, c := range cases {
		if _, err := Normalize(c.raw, 0.3, bounds, cats); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := supplier.RawItem{Key: "D1", Name: "USB Hub", Brand: "Acme", CategoryName: "digital", Cost: 12345, StockQuantity: 7}
	bounds := testBounds()
	cats := testMapper()

	first, err := Normalize(raw, 0.25, bounds, cats)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Normalize(raw, 0.25, bounds, cats)
		if err != nil {
			t.Fatalf("Normalize returned error on run %d: %v", i, err)
		}
		if *again != *first {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestCategoryResolution(t *testing.T) {
	cats := testMapper()

	if got := cats.Resolve("Fashion & Apparel"); got != "fashion" {
		t.Errorf("Resolve(display name) = %s, want fashion", got)
	}
	if got := cats.Resolve("DIGITAL"); got != "digital" {
		t.Errorf("Resolve(key, case-insensitive) = %s, want digital", got)
	}
	if got := cats.Resolve("no such category"); got != UncategorizedKey {
		t.Errorf("Resolve(unknown) = %s, want %s", got, UncategorizedKey)
	}

	cats.AddAlias("패션의류", "fashion")
	if got := cats.Resolve("패션의류"); got != "fashion" {
		t.Errorf("Resolve(alias) = %s, want fashion", got)
	}
}

func TestCategoryKeys(t *testing.T) {
	keys := testMapper().Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys() = %v, want 2 entries", keys)
	}
	if keys[0] != "digital" || keys[1] != "fashion" {
		t.Errorf("Keys() = %v, want sorted [digital fashion]", keys)
	}
}
