// Package utils provides utility functions for the strategy tester.
package utils

import (
	"strings"
)

// NormalizeColumn lowercases a CSV header cell and strips whitespace.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeSymbol normalizes a dataset symbol for cache keys.
func NormalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	symbol = strings.ToUpper(symbol)
	symbol = strings.ReplaceAll(symbol, " ", "_")
	return symbol
}
