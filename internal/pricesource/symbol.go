package pricesource

import "strings"

// exchangeSuffixes maps exchange codes to the market suffix quote providers expect.
var exchangeSuffixes = map[string]string{
	"NZX":    ".NZ",
	"ASX":    ".AX",
	"LSE":    ".L",
	"TSX":    ".TO",
	"TSE":    ".T",
	"NASDAQ": "",
	"NYSE":   "",
	"AMEX":   "",
}

// FormatSymbol returns the provider symbol for a ticker listed on exchange.
// Tickers that already carry a suffix and unknown exchanges are returned unchanged.
func FormatSymbol(ticker, exchange string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if strings.Contains(ticker, ".") {
		return ticker
	}
	suffix := exchangeSuffixes[strings.ToUpper(strings.TrimSpace(exchange))]
	return ticker + suffix
}
