package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kjannette/brent-backend/internal/models"
	"github.com/shopspring/decimal"
)

// ParseStats counts what ParseDailyDataStats kept and dropped.
type ParseStats struct {
	Accepted int
	Skipped  int
}

// ParseDailyData extracts price records from the "data" array of a decoded
// Alpha Vantage commodity response. Entries without a string date, without a
// value, or whose value is not a finite number are dropped. Input order is kept.
func ParseDailyData(doc map[string]any, currency, unit string) []models.PriceRecord {
	out, _ := ParseDailyDataStats(doc, currency, unit)
	return out
}

func ParseDailyDataStats(doc map[string]any, currency, unit string) ([]models.PriceRecord, ParseStats) {
	var stats ParseStats
	entries, _ := doc["data"].([]any)

	out := make([]models.PriceRecord, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			stats.Skipped++
			continue
		}
		date, ok := entry["date"].(string)
		if !ok {
			stats.Skipped++
			continue
		}
		value, ok := entry["value"]
		if !ok {
			stats.Skipped++
			continue
		}
		price, ok := coercePrice(value)
		if !ok {
			stats.Skipped++
			continue
		}
		out = append(out, models.PriceRecord{
			Date:     date,
			Price:    price,
			Currency: currency,
			Unit:     unit,
		})
		stats.Accepted++
	}
	return out, stats
}

// parseDailyPayload decodes a raw response body and parses it.
func parseDailyPayload(body []byte, currency, unit string) ([]models.PriceRecord, error) {
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	return ParseDailyData(doc, currency, unit), nil
}

func decodeDocument(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

// coercePrice accepts numeric strings and JSON numbers. decimal rejects
// NaN, Inf and Alpha Vantage's "." placeholder.
func coercePrice(v any) (float64, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	default:
		return 0, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
