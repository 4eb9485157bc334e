package money

// fractionDigits maps ISO 4217 currency codes to their default number of
// fractional digits. Codes absent from the table use defaultFractionDigits.
// Only the exceptions to the two-digit default are listed.
var fractionDigits = map[string]int32{
	// Zero-decimal currencies
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0,
	"VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,

	// Three-decimal currencies
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,

	// Four-decimal currencies
	"CLF": 4, "UYW": 4,
}

const defaultFractionDigits int32 = 2

// FractionDigits returns the ISO default number of fractional digits for the
// given currency code.
func FractionDigits(currencyCode string) int32 {
	if d, ok := fractionDigits[currencyCode]; ok {
		return d
	}
	return defaultFractionDigits
}

// ValidCurrencyCode reports whether the code is a plausible ISO 4217 code:
// exactly three uppercase ASCII letters.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
