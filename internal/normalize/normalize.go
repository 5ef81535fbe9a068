package normalize

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
)

// UncategorizedKey is the fallback bucket for unmapped supplier categories
const UncategorizedKey = "uncategorized"

// Bounds holds the configured margin-rate range
type Bounds struct {
	Min     float64
	Max     float64
	Default float64
}

// NormalizedItem is the canonical product shape ready for publishing.
// Prices are in the currency minimum unit (KRW won).
type NormalizedItem struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Brand         string  `json:"brand,omitempty"`
	CategoryKey   string  `json:"categoryKey"`
	SupplierCost  int64   `json:"supplierCost"`
	SalePrice     int64   `json:"salePrice"`
	MarginRate    float64 `json:"marginRate"`
	StockQuantity int     `json:"stockQuantity"`
}

// CategoryMapper resolves free-text supplier category names to canonical
// keys. Exact match first, then the uncategorized bucket. Alias entries
// (including AI-suggested ones) are registered before normalization runs
// so that resolution stays deterministic.
type CategoryMapper struct {
	mu     sync.RWMutex
	byName map[string]string
}

// NewCategoryMapper creates a mapper from canonical key -> display name
// plus any number of alias -> key entries.
func NewCategoryMapper(categories map[string]string) *CategoryMapper {
	m := &CategoryMapper{byName: make(map[string]string, len(categories)*2)}
	for key, name := range categories {
		m.byName[strings.ToLower(strings.TrimSpace(name))] = key
		m.byName[strings.ToLower(key)] = key
	}
	return m
}

// AddAlias registers one supplier-side name for a canonical key
func (m *CategoryMapper) AddAlias(alias, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[strings.ToLower(strings.TrimSpace(alias))] = key
}

// Resolve maps a supplier category name to a canonical key
func (m *CategoryMapper) Resolve(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key, ok := m.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return key
	}
	return UncategorizedKey
}

// Known reports whether the name resolves to a real category
func (m *CategoryMapper) Known(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byName[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Keys returns the sorted set of canonical category keys
func (m *CategoryMapper) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool, len(m.byName))
	for _, key := range m.byName {
		seen[key] = true
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SalePrice computes cost * (1 + margin), rounded to the currency minimum unit
func SalePrice(cost int64, marginRate float64) int64 {
	return int64(math.Round(float64(cost) * (1 + marginRate)))
}

// Normalize maps one raw supplier item into the canonical product shape.
// It is a pure function: the same inputs always yield the same output.
func Normalize(raw supplier.RawItem, marginRate float64, bounds Bounds, cats *CategoryMapper) (*NormalizedItem, error) {
	if strings.TrimSpace(raw.Name) == "" {
		return nil, apperrors.NewValidationError("name", "required")
	}
	if raw.Cost <= 0 {
		return nil, apperrors.NewValidationError("cost", "required")
	}
	if strings.TrimSpace(raw.CategoryName) == "" {
		return nil, apperrors.NewValidationError("category", "required")
	}

	if marginRate == 0 {
		marginRate = bounds.Default
	}
	if marginRate < bounds.Min {
		return nil, apperrors.NewValidationError("margin_rate", apperrors.CodeMarginBelowFloor)
	}
	if marginRate > bounds.Max {
		marginRate = bounds.Max
	}

	salePrice := SalePrice(raw.Cost, marginRate)
	if salePrice <= 0 {
		return nil, apperrors.NewValidationError("sale_price", "non_positive")
	}

	return &NormalizedItem{
		Key:           raw.Key,
		Name:          strings.TrimSpace(raw.Name),
		Brand:         strings.TrimSpace(raw.Brand),
		CategoryKey:   cats.Resolve(raw.CategoryName),
		SupplierCost:  raw.Cost,
		SalePrice:     salePrice,
		MarginRate:    marginRate,
		StockQuantity: raw.StockQuantity,
	}, nil
}
