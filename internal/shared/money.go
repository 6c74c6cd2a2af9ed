package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var kesPrinter = message.NewPrinter(language.English)

// FormatKES renders an amount the way rejection details quote it,
// e.g. "KES 1,234.50".
func FormatKES(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return kesPrinter.Sprintf("KES %.2f", f)
}
