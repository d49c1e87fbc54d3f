package costmodel

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Model holds the business constants used for cost allocation and payback.
// They have no documented provenance; treat them as configuration, not truth.
type Model struct {
	// CategoryMargins maps a lower-cased product category to its gross margin rate.
	CategoryMargins map[string]decimal.Decimal
	// DefaultMargin applies to unknown categories and to orders without line items.
	DefaultMargin decimal.Decimal
	// ShippingRate and OpsRate are fractions of net revenue.
	ShippingRate decimal.Decimal
	OpsRate      decimal.Decimal
	// AssumedMarginRate converts LTV into margin for payback periods.
	AssumedMarginRate decimal.Decimal
	// Fingerprint is the SHA-256 of the file the model was loaded from, or
	// "default" for the built-in constants.
	Fingerprint string
}

// rawModel is the on-disk YAML shape. Rates are strings so they parse
// exactly into decimals.
type rawModel struct {
	CategoryMargins   map[string]string `yaml:"category_margins"`
	DefaultMargin     string            `yaml:"default_margin"`
	ShippingRate      string            `yaml:"shipping_rate"`
	OpsRate           string            `yaml:"ops_rate"`
	AssumedMarginRate string            `yaml:"assumed_margin_rate"`
}

// Default returns the reference constants.
func Default() Model {
	return Model{
		CategoryMargins: map[string]decimal.Decimal{
			"apparel":     decimal.RequireFromString("0.60"),
			"accessories": decimal.RequireFromString("0.65"),
			"footwear":    decimal.RequireFromString("0.50"),
			"beauty":      decimal.RequireFromString("0.70"),
			"home":        decimal.RequireFromString("0.55"),
			"electronics": decimal.RequireFromString("0.30"),
			"food":        decimal.RequireFromString("0.40"),
		},
		DefaultMargin:     decimal.RequireFromString("0.55"),
		ShippingRate:      decimal.RequireFromString("0.08"),
		OpsRate:           decimal.RequireFromString("0.05"),
		AssumedMarginRate: decimal.RequireFromString("0.30"),
		Fingerprint:       "default",
	}
}

// Load reads a cost model file and overlays it on Default. A missing file
// is valid and yields the defaults.
func Load(path string) (Model, error) {
	m := Default()
	if strings.TrimSpace(path) == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return Model{}, fmt.Errorf("reading cost model %s: %w", path, err)
	}

	var raw rawModel
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Model{}, fmt.Errorf("parsing cost model %s: %w", path, err)
	}

	if err := overlayRate(&m.DefaultMargin, "default_margin", raw.DefaultMargin); err != nil {
		return Model{}, err
	}
	if err := overlayRate(&m.ShippingRate, "shipping_rate", raw.ShippingRate); err != nil {
		return Model{}, err
	}
	if err := overlayRate(&m.OpsRate, "ops_rate", raw.OpsRate); err != nil {
		return Model{}, err
	}
	if err := overlayRate(&m.AssumedMarginRate, "assumed_margin_rate", raw.AssumedMarginRate); err != nil {
		return Model{}, err
	}
	if len(raw.CategoryMargins) > 0 {
		m.CategoryMargins = make(map[string]decimal.Decimal, len(raw.CategoryMargins))
		for category, value := range raw.CategoryMargins {
			var rate decimal.Decimal
			if err := overlayRate(&rate, "category_margins."+category, value); err != nil {
				return Model{}, err
			}
			m.CategoryMargins[strings.ToLower(strings.TrimSpace(category))] = rate
		}
	}

	m.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
	return m, nil
}

func overlayRate(dst *decimal.Decimal, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("cost model %s: invalid rate %q: %w", name, value, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("cost model %s: rate %s must be within [0, 1]", name, rate)
	}
	*dst = rate
	return nil
}

// MarginFor returns the margin rate for a product category.
func (m Model) MarginFor(category string) decimal.Decimal {
	if rate, ok := m.CategoryMargins[strings.ToLower(strings.TrimSpace(category))]; ok {
		return rate
	}
	return m.DefaultMargin
}

// Categories returns the configured categories in sorted order.
func (m Model) Categories() []string {
	out := make([]string, 0, len(m.CategoryMargins))
	for c := range m.CategoryMargins {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
