package symbols

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// fallbackCurrency is used when the locale has no recognised region.
const fallbackCurrency = "$"

var currencyByRegion = map[string]string{
	// Americas
	"US": "$", "CA": "$", "MX": "$", "AR": "$", "CL": "$", "CO": "$", "PE": "$",
	"VE": "$", "EC": "$", "GT": "$", "CU": "$", "BO": "$", "DO": "$", "HN": "$",
	"PY": "$", "SV": "$", "NI": "$", "CR": "$", "PA": "$", "UY": "$",
	"BR": "R$",

	// Eurozone
	"AT": "€", "BE": "€", "CY": "€", "EE": "€", "FI": "€", "FR": "€", "DE": "€",
	"GR": "€", "IE": "€", "IT": "€", "LV": "€", "LT": "€", "LU": "€", "MT": "€",
	"NL": "€", "PT": "€", "SK": "€", "SI": "€", "ES": "€", "HR": "€",

	"GB": "£",
	"JP": "¥", "CN": "¥",
	"IN": "₹",
	"RU": "₽",
	"KR": "₩",
	"IL": "₪",
	"CH": "CHF",
	"SE": "kr", "NO": "kr", "DK": "kr",
	"PL": "zł",
	"CZ": "Kč",
	"HU": "Ft",
	"RO": "lei",
	"BG": "лв",
	"TR": "₺",
	"ZA": "R",
	"AU": "$", "NZ": "$", "SG": "$",
	"HK": "HK$",
}

// CurrencyOption is a selectable preferred-currency entry.
type CurrencyOption struct {
	Symbol string
	Label  string
}

// CurrencyOptions lists the currency symbols a user can pick as preferred.
var CurrencyOptions = []CurrencyOption{
	{"$", "Dollar ($)"},
	{"€", "Euro (€)"},
	{"£", "Pound (£)"},
	{"¥", "Yen/Yuan (¥)"},
	{"₹", "Rupee (₹)"},
	{"₽", "Ruble (₽)"},
	{"₩", "Won (₩)"},
	{"¢", "Cent (¢)"},
	{"₪", "Shekel (₪)"},
	{"₿", "Bitcoin (₿)"},
	{"CHF", "Swiss Franc (CHF)"},
	{"kr", "Krona (kr)"},
	{"zł", "Zloty (zł)"},
	{"Kč", "Koruna (Kč)"},
	{"Ft", "Forint (Ft)"},
	{"lei", "Leu (lei)"},
	{"лв", "Lev (лв)"},
	{"₺", "Lira (₺)"},
	{"R$", "Real (R$)"},
	{"R", "Rand (R)"},
	{"HK$", "Hong Kong Dollar (HK$)"},
}

// DefaultCurrencySymbol returns the currency symbol for the region of a
// locale such as "en_GB.UTF-8", "fr-CA" or "de". An empty locale is read
// from the environment (LC_ALL, LC_MONETARY, LANG).
func DefaultCurrencySymbol(locale string) string {
	if locale == "" {
		locale = EnvLocale()
	}
	region, ok := regionOf(locale)
	if !ok {
		return fallbackCurrency
	}
	if sym, ok := currencyByRegion[region]; ok {
		return sym
	}
	return fallbackCurrency
}

// EnvLocale returns the POSIX locale from the environment, or "".
func EnvLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MONETARY", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			return v
		}
	}
	return ""
}

// regionOf extracts an explicit region from a locale string. Regions are
// not inferred from the language alone: "de" has no region, which keeps
// the fallback behaviour predictable.
func regionOf(locale string) (string, bool) {
	// Strip encoding and modifier: en_GB.UTF-8@euro -> en_GB
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}
	region, conf := tag.Region()
	if conf != language.Exact {
		return "", false
	}
	return region.String(), true
}
