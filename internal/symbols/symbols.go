// Package symbols holds the symbol-picker catalogue and locale currency data.
//
// The picker itself is drawn by the host UI. This package only answers
// which symbols belong to which category and in what order categories
// cycle when the Sym key is tapped repeatedly.
package symbols

// Category identifies a page of the symbol picker.
type Category int

// Picker categories, in cycle order.
const (
	CategoryCommon Category = iota
	CategoryMath
	CategoryCurrency
	CategoryArrows
	CategoryOther

	categoryCount
)

var categoryIDs = [...]string{
	CategoryCommon:   "common",
	CategoryMath:     "math",
	CategoryCurrency: "currency",
	CategoryArrows:   "arrows",
	CategoryOther:    "other",
}

var categoryNames = [...]string{
	CategoryCommon:   "Common Symbols",
	CategoryMath:     "Math",
	CategoryCurrency: "Currency",
	CategoryArrows:   "Arrows",
	CategoryOther:    "Other",
}

// String returns the stable identifier of the category.
func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return "unknown"
	}
	return categoryIDs[c]
}

// DisplayName returns the label shown in the picker header.
func (c Category) DisplayName() string {
	if c < 0 || c >= categoryCount {
		return ""
	}
	return categoryNames[c]
}

// Next returns the category after c, wrapping to the first one.
func (c Category) Next() Category {
	if c < 0 || c >= categoryCount-1 {
		return CategoryCommon
	}
	return c + 1
}

// Count returns the number of picker categories.
func Count() int { return int(categoryCount) }

// ParseCategory maps an identifier back to its Category.
func ParseCategory(id string) (Category, bool) {
	for i, s := range categoryIDs {
		if s == id {
			return Category(i), true
		}
	}
	return CategoryCommon, false
}

// Symbols returns the symbols shown for a category. The preferred currency
// symbol is placed first in the common category; an empty currency falls
// back to the locale default.
//
// Symbols already reachable with Alt on the hardware keyboard
// (digits, @ ! ( ) - _ * # + " , . / ' ? :) are not repeated here.
func Symbols(c Category, preferredCurrency, locale string) []string {
	switch c {
	case CategoryCommon:
		currency := preferredCurrency
		if currency == "" {
			currency = DefaultCurrencySymbol(locale)
		}
		return append([]string{currency},
			"%", "&", "=", "[", "]",
			"{", "}", "|", ";", "<", ">",
			"~", "\\", "`", "^", "«", "»",
			"°", "§", "¶", "•", "…",
		)
	case CategoryMath:
		return []string{
			"±", "×", "÷", "≠", "≈", "≤",
			"≥", "√", "∞", "∑", "π", "∫",
			"∂", "∆", "∏", "ƒ", "µ", "α",
			"β", "γ", "δ", "θ", "λ", "σ",
		}
	case CategoryCurrency:
		return []string{
			"$", "€", "£", "¥", "₹", "₽",
			"₩", "¢", "₪", "₿", "CHF", "kr",
			"zł", "Kč", "Ft", "lei", "лв", "₺",
			"R$", "R", "HK$",
		}
	case CategoryArrows:
		return []string{
			"←", "→", "↑", "↓", "↔", "↕",
			"⇐", "⇒", "⇑", "⇓", "⇔", "↖",
			"↗", "↘", "↙", "⟵", "⟶", "⟷",
		}
	case CategoryOther:
		return []string{
			"©", "®", "™", "†", "‡", "‰",
			"′", "″", "※", "℃", "℉", "№",
			"℗", "℠", "⁂", "¡", "¿", "…",
			"–", "—", "‹", "›", "‚", "„",
		}
	default:
		return nil
	}
}
