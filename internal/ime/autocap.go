package ime

// FieldKind is the content class of the focused field.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldURI
	FieldEmail
	FieldPassword
	FieldNumber
	FieldPhone
	FieldDateTime
)

// FieldInfo describes the focused field.
type FieldInfo struct {
	Kind FieldKind

	// NoSuggestions marks fields that opt out of text assistance.
	NoSuggestions bool
}

// Android InputType bits used by FieldInfoFromInputType.
const (
	inputTypeMaskClass      = 0x0000000f
	inputTypeMaskVariation  = 0x00000ff0
	inputTypeClassText      = 0x00000001
	inputTypeClassNumber    = 0x00000002
	inputTypeClassPhone     = 0x00000003
	inputTypeClassDatetime  = 0x00000004
	inputTypeVariationURI   = 0x00000010
	inputTypeVariationEmail = 0x00000020
	inputTypeVariationPass  = 0x00000080
	inputTypeVariationVisPw = 0x00000090
	inputTypeVariationWebEm = 0x000000d0
	inputTypeVariationWebPw = 0x000000e0
	inputTypeFlagNoSuggest  = 0x00080000
)

// FieldInfoFromInputType decodes an Android EditorInfo.inputType.
func FieldInfoFromInputType(inputType int) FieldInfo {
	info := FieldInfo{NoSuggestions: inputType&inputTypeFlagNoSuggest != 0}

	switch inputType & inputTypeMaskClass {
	case inputTypeClassNumber:
		info.Kind = FieldNumber
		return info
	case inputTypeClassPhone:
		info.Kind = FieldPhone
		return info
	case inputTypeClassDatetime:
		info.Kind = FieldDateTime
		return info
	case inputTypeClassText:
	default:
		// TYPE_NULL: the field is not editable text.
		info.Kind = FieldNumber
		return info
	}

	switch inputType & inputTypeMaskVariation {
	case inputTypeVariationURI:
		info.Kind = FieldURI
	case inputTypeVariationEmail, inputTypeVariationWebEm:
		info.Kind = FieldEmail
	case inputTypeVariationPass, inputTypeVariationVisPw, inputTypeVariationWebPw:
		info.Kind = FieldPassword
	default:
		info.Kind = FieldText
	}
	return info
}

// allowsAutoCap reports whether the field kind takes sentence capitalization.
func (f *FieldInfo) allowsAutoCap() bool {
	if f == nil || f.NoSuggestions {
		return false
	}
	return f.Kind == FieldText
}

// shouldAutoCapitalize reports whether the next letter starts a sentence.
// No field info, or a field whose text cannot be read, means no.
func shouldAutoCapitalize(s Surface, field *FieldInfo) bool {
	if !field.allowsAutoCap() {
		return false
	}

	before, ok := s.TextBeforeCursor(100)
	if !ok {
		return false
	}
	if before == "" {
		return true
	}

	r := []rune(before)
	last := r[len(r)-1]
	if last == '\n' {
		return true
	}
	if len(r) >= 2 {
		prev := r[len(r)-2]
		if (last == ' ' || last == '\t') && (prev == '.' || prev == '!' || prev == '?') {
			return true
		}
	}
	return false
}
