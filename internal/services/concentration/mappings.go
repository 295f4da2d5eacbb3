// Package concentration resolves portfolio positions through exposure
// mappings to their ultimate underlying assets.
package concentration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bobmcallan/holdfast/internal/models"
)

// ParseError reports a malformed exposure mapping entry.
type ParseError struct {
	Symbol string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("exposure mapping %s: %s (%q)", e.Symbol, e.Reason, e.Value)
	}
	return fmt.Sprintf("exposure mapping %s: %s", e.Symbol, e.Reason)
}

// MappingStore is the immutable symbol -> exposures graph. Keys are upper case.
type MappingStore struct {
	mappings map[string][]models.ExposureMapping
}

// Lookup returns the mappings owned by symbol (case-insensitive).
func (m *MappingStore) Lookup(symbol string) ([]models.ExposureMapping, bool) {
	if m == nil {
		return nil, false
	}
	list, ok := m.mappings[strings.ToUpper(symbol)]
	return list, ok
}

// Len returns the number of mapped symbols.
func (m *MappingStore) Len() int {
	if m == nil {
		return 0
	}
	return len(m.mappings)
}

// Symbols returns the mapped symbols in sorted order.
func (m *MappingStore) Symbols() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.mappings))
	for s := range m.mappings {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ParseMappings builds a MappingStore from the raw exposure_mappings config section.
// Each value may be:
//
//	"UNDERLYING" or "UNDERLYING*factor"
//	a list of such strings (one symbol exposed to several underlyings)
//	a record {underlying = "X", factor = 0.5}
//
// Blank strings are skipped. A non-numeric factor or a record without an
// underlying is a *ParseError.
func ParseMappings(raw map[string]any) (*MappingStore, error) {
	store := &MappingStore{mappings: make(map[string][]models.ExposureMapping, len(raw))}

	// Sorted keys make error reporting deterministic.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, symbol := range keys {
		upper := strings.ToUpper(strings.TrimSpace(symbol))
		if upper == "" {
			continue
		}

		list, err := parseValue(upper, raw[symbol])
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			// Keys differing only by case merge in key order.
			store.mappings[upper] = append(store.mappings[upper], list...)
		}
	}

	return store, nil
}

func parseValue(symbol string, value any) ([]models.ExposureMapping, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		m, ok, err := parseScalar(symbol, v)
		if err != nil || !ok {
			return nil, err
		}
		return []models.ExposureMapping{m}, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return parseList(symbol, items)
	case []any:
		return parseList(symbol, v)
	case map[string]any:
		m, err := parseRecord(symbol, v)
		if err != nil {
			return nil, err
		}
		return []models.ExposureMapping{m}, nil
	default:
		return nil, &ParseError{Symbol: symbol, Value: fmt.Sprint(value), Reason: fmt.Sprintf("unsupported mapping type %T", value)}
	}
}

func parseList(symbol string, items []any) ([]models.ExposureMapping, error) {
	var out []models.ExposureMapping
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		m, ok, err := parseScalar(symbol, s)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// parseScalar splits "UNDERLYING*factor" on the first '*'.
// ok is false for blank input.
func parseScalar(symbol, s string) (models.ExposureMapping, bool, error) {
	if strings.TrimSpace(s) == "" {
		return models.ExposureMapping{}, false, nil
	}

	underlying, factorText, hasFactor := strings.Cut(s, "*")
	underlying = strings.TrimSpace(underlying)
	if underlying == "" {
		return models.ExposureMapping{}, false, &ParseError{Symbol: symbol, Value: s, Reason: "missing underlying"}
	}

	factor := 1.0
	if hasFactor {
		f, err := strconv.ParseFloat(strings.TrimSpace(factorText), 64)
		if err != nil {
			return models.ExposureMapping{}, false, &ParseError{Symbol: symbol, Value: s, Reason: "invalid factor"}
		}
		factor = f
	}

	return models.ExposureMapping{Symbol: symbol, Underlying: underlying, Factor: factor}, true, nil
}

func parseRecord(symbol string, rec map[string]any) (models.ExposureMapping, error) {
	underlying, _ := rec["underlying"].(string)
	underlying = strings.TrimSpace(underlying)
	if underlying == "" {
		return models.ExposureMapping{}, &ParseError{Symbol: symbol, Reason: "record requires an underlying"}
	}

	factor := 1.0
	if raw, ok := rec["factor"]; ok && raw != nil {
		f, err := toFloat(raw)
		if err != nil {
			return models.ExposureMapping{}, &ParseError{Symbol: symbol, Value: fmt.Sprint(raw), Reason: "invalid factor"}
		}
		factor = f
	}

	return models.ExposureMapping{Symbol: symbol, Underlying: underlying, Factor: factor}, nil
}

// toFloat accepts the numeric types the TOML and YAML decoders produce.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
