package model

import "strings"

// AssetClass distinguishes equities from crypto pairs.
type AssetClass string

const (
	AssetEquity AssetClass = "us_equity"
	AssetCrypto AssetClass = "crypto"
)

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ClassifySymbol returns AssetCrypto for pair symbols like "BTC/USD".
func ClassifySymbol(symbol string) AssetClass {
	if strings.Contains(symbol, "/") {
		return AssetCrypto
	}
	return AssetEquity
}
