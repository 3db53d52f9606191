package identity

import (
	"strings"
	"unicode"

	"smokeplan/internal/domain"
)

// BrandAutronica is the brand reported for Autronica payloads.
const BrandAutronica = "Autronica"

// AutronicaStrategy handles underscore-delimited Autronica labels such as
// "000.037.2022.223.00088_V-100_116-V-100_01". The first segment is a dotted
// numeric serial; the model is the longest later segment that mixes letters
// and digits.
type AutronicaStrategy struct{}

func (AutronicaStrategy) Name() string { return "autronica" }

func (AutronicaStrategy) Parse(payload string) (Fields, bool) {
	parts := strings.Split(payload, "_")
	if len(parts) < 2 {
		return Fields{}, false
	}
	head := strings.TrimSpace(parts[0])
	if !strings.Contains(head, ".") {
		return Fields{}, false
	}
	serial := strings.ReplaceAll(head, ".", "")
	if !allDigits(serial) {
		return Fields{}, false
	}

	f := Fields{Serial: serial, Brand: BrandAutronica}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if mixed(p) && len(p) > len(f.Model) {
			f.Model = p
		}
	}
	return f, true
}

// KeyValueStrategy reads "KEY:value" or "KEY=value" pairs separated by
// semicolons, commas, pipes, ampersands or newlines. Unknown keys are ignored.
type KeyValueStrategy struct{}

func (KeyValueStrategy) Name() string { return "key_value" }

var keyAliases = map[string]string{
	"SN":           "serial",
	"SERIAL":       "serial",
	"SERIALNO":     "serial",
	"SERIALNUMBER": "serial",
	"SER":          "serial",
	"MODEL":        "model",
	"TYPE":         "model",
	"PN":           "model",
	"PRODUCT":      "model",
	"BRAND":        "brand",
	"MFR":          "brand",
	"MANUFACTURER": "brand",
	"VENDOR":       "brand",
	"BUS":          "bus",
	"LOOP":         "bus",
	"GROUP":        "group",
	"GRP":          "group",
	"ZONE":         "group",
	"ADDR":         "address",
	"ADDRESS":      "address",
}

func (KeyValueStrategy) Parse(payload string) (Fields, bool) {
	items := strings.FieldsFunc(payload, func(r rune) bool {
		switch r {
		case ';', ',', '|', '&', '\n', '\r':
			return true
		}
		return false
	})

	var f Fields
	found := false
	for _, item := range items {
		i := strings.IndexAny(item, ":=")
		if i <= 0 {
			continue
		}
		key := normalizeKey(item[:i])
		value := strings.TrimSpace(item[i+1:])
		field, ok := keyAliases[key]
		if !ok || value == "" {
			continue
		}
		switch field {
		case "serial":
			setOnce(&f.Serial, value)
		case "model":
			setOnce(&f.Model, value)
		case "brand":
			setOnce(&f.Brand, value)
		case "bus":
			if domain.ValidAddressToken(value) {
				setOnce(&f.Bus, value)
			}
		case "group":
			if domain.ValidAddressToken(value) {
				setOnce(&f.Group, value)
			}
		case "address":
			if domain.ValidAddressToken(value) {
				setOnce(&f.Address, value)
			}
		}
		found = true
	}
	return f, found
}

// TokenStrategy scans free text for a serial-like token (five or more digits,
// optionally dotted) and a model-like token (letters mixed with digits).
type TokenStrategy struct{}

func (TokenStrategy) Name() string { return "token_scan" }

const minSerialDigits = 5

func (TokenStrategy) Parse(payload string) (Fields, bool) {
	tokens := strings.FieldsFunc(payload, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-')
	})

	var f Fields
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".-")
		if tok == "" {
			continue
		}
		if plain := strings.ReplaceAll(tok, ".", ""); allDigits(plain) && len(plain) >= minSerialDigits {
			setOnce(&f.Serial, plain)
			continue
		}
		if mixed(tok) && len(tok) > len(f.Model) {
			f.Model = tok
		}
	}
	return f, f.Serial != "" || f.Model != ""
}

func normalizeKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(k) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// mixed reports whether s contains both a letter and a digit.
func mixed(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
