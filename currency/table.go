package currency

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Table maps currency codes to their exchange rate into the canonical
// currency. It is injected, already-fetched data: the engine never calls out
// to a rate feed itself.
type Table struct {
	base  string
	rates map[string]decimal.Decimal
}

// tableFile is the on-disk YAML shape. Rates are decoded from their scalar
// form into strings so they never pass through a float64.
type tableFile struct {
	Base  string            `yaml:"base"`
	Rates map[string]string `yaml:"rates"`
}

// NewTable builds a table directly from a rate map. The base currency, if
// non-empty, gets an implicit identity rate.
func NewTable(base string, rates map[string]decimal.Decimal) (*Table, error) {
	t := &Table{
		base:  base,
		rates: make(map[string]decimal.Decimal, len(rates)+1),
	}
	if base != "" {
		t.rates[base] = decimal.NewFromInt(1)
	}
	for code, rate := range rates {
		t.rates[code] = rate
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseTable decodes a YAML rate table document.
func ParseTable(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rate table: %w", err)
	}

	rates := make(map[string]decimal.Decimal, len(file.Rates))
	for code, raw := range file.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("rate for %q: %w", code, err)
		}
		rates[code] = rate
	}

	return NewTable(file.Base, rates)
}

func (t *Table) validate() error {
	for code, rate := range t.rates {
		if code == "" {
			return fmt.Errorf("rate table: empty currency code")
		}
		if rate.Sign() <= 0 {
			return fmt.Errorf("rate table: %s: %w", code, ErrNonPositiveRate)
		}
	}
	return nil
}

// Rate returns the exchange rate for a currency code.
func (t *Table) Rate(code string) (decimal.Decimal, bool) {
	rate, ok := t.rates[code]
	return rate, ok
}

// Base returns the canonical currency code, which may be empty if the table
// was built without one.
func (t *Table) Base() string {
	return t.base
}

// Codes lists the supported currency codes in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
