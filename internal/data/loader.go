// Package data provides market data loading and validation.
package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quantbench/strategy-tester/pkg/types"
	"github.com/quantbench/strategy-tester/pkg/utils"
	"github.com/shopspring/decimal"
)

// timeColumns are the header names recognized as the bar timestamp, in
// detection order.
var timeColumns = []string{"time", "date", "datetime", "timestamp"}

// timeLayouts are tried in order when the value is not a unix epoch.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSV loads a charting-platform CSV export and normalizes it into a
// Series: lowercase headers, o/h/l/c/v column aliases resolved, rows
// sorted ascending by time.
func LoadCSV(path string) (*types.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[normalizeHeader(name)] = i
	}

	timeIdx := -1
	for _, candidate := range timeColumns {
		if idx, ok := cols[candidate]; ok {
			timeIdx = idx
			break
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf(
			"no date/time column found in %s, expected one of %v", path, timeColumns)
	}

	for _, required := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q in %s", required, path)
		}
	}

	bars := make([]types.Bar, 0, len(records)-1)
	for line, record := range records[1:] {
		ts, err := parseTime(record[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line+2, err)
		}

		bar := types.Bar{Timestamp: ts}
		for name, dst := range map[string]*decimal.Decimal{
			"open":  &bar.Open,
			"high":  &bar.High,
			"low":   &bar.Low,
			"close": &bar.Close,
		} {
			value, err := decimal.NewFromString(record[cols[name]])
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad %s value %q", path, line+2, name, record[cols[name]])
			}
			*dst = value
		}
		if idx, ok := cols["volume"]; ok {
			if value, err := decimal.NewFromString(record[idx]); err == nil {
				bar.Volume = value
			}
		}

		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return &types.Series{Bars: bars}, nil
}

// Validate checks a series for the preconditions the engine assumes,
// returning a list of issues. The engine itself never re-validates.
func Validate(series *types.Series) []string {
	var issues []string

	for i := range series.Bars {
		bar := &series.Bars[i]
		if bar.High.LessThan(bar.Low) {
			issues = append(issues, fmt.Sprintf(
				"bar %d (%s): high %s < low %s",
				i, bar.Timestamp.Format(time.RFC3339), bar.High, bar.Low))
		}
		if i > 0 && !series.Bars[i-1].Timestamp.Before(bar.Timestamp) {
			issues = append(issues, fmt.Sprintf(
				"bar %d (%s): timestamp not strictly increasing",
				i, bar.Timestamp.Format(time.RFC3339)))
		}
	}

	return issues
}

// normalizeHeader resolves the export's header aliases to canonical
// column names.
func normalizeHeader(name string) string {
	switch normalized := utils.NormalizeColumn(name); normalized {
	case "o":
		return "open"
	case "h":
		return "high"
	case "l":
		return "low"
	case "c":
		return "close"
	case "v", "vol":
		return "volume"
	default:
		return normalized
	}
}

// parseTime parses a timestamp cell, accepting unix epoch seconds or
// any of the known layouts.
func parseTime(value string) (time.Time, error) {
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}
