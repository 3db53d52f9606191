package identity

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		want     Fields
		strategy string
	}{
		{
			name:     "autronica label",
			payload:  "000.037.2022.223.00088_V-100_116-V-100_01",
			want:     Fields{Serial: "000037202222300088", Model: "116-V-100", Brand: "Autronica"},
			strategy: "autronica",
		},
		{
			name:     "autronica serial only",
			payload:  "123.456_01",
			want:     Fields{Serial: "123456", Brand: "Autronica"},
			strategy: "autronica",
		},
		{
			name:     "key value",
			payload:  "SN:12345;MODEL:X3",
			want:     Fields{Serial: "12345", Model: "X3"},
			strategy: "key_value",
		},
		{
			name:     "key value with equals and aliases",
			payload:  "S/N=77-001 | Type = OH-9 | mfr=Acme | loop=2 | zone=1 | addr=14",
			want:     Fields{Serial: "77-001", Model: "OH-9", Brand: "Acme", Bus: "2", Group: "1", Address: "14"},
			strategy: "key_value",
		},
		{
			name:     "negative address hint dropped",
			payload:  "SN:1;ADDR:-3",
			want:     Fields{Serial: "1"},
			strategy: "key_value",
		},
		{
			name:     "over-long bus hint dropped",
			payload:  "SN:12345;MODEL:X3;BUS:ABCDEFGHIJKLMNOPQRS;GRP:2",
			want:     Fields{Serial: "12345", Model: "X3", Group: "2"},
			strategy: "key_value",
		},
		{
			name:     "token scan",
			payload:  "Optical detector AB12X serial 0042 1234567",
			want:     Fields{Serial: "1234567", Model: "AB12X"},
			strategy: "token_scan",
		},
		{
			name:     "token scan model only",
			payload:  "unit DOT-4046",
			want:     Fields{Model: "DOT-4046"},
			strategy: "token_scan",
		},
		{
			name:     "underscore without dotted serial falls through",
			payload:  "ABC_12345678",
			want:     Fields{Serial: "12345678"},
			strategy: "token_scan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Strategy != tt.strategy {
				t.Errorf("expected strategy %s, got %s", tt.strategy, got.Strategy)
			}
			if got.Payload != strings.TrimSpace(tt.payload) {
				t.Errorf("expected payload preserved, got %q", got.Payload)
			}
			got.Strategy, got.Payload = "", ""
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseUnrecognized(t *testing.T) {
	for _, payload := range []string{
		"garbage",
		"",
		"   ",
		"hello world",
		"SN:;MODEL:",
		"1234",
		strings.Repeat("9", MaxPayloadLen+1),
	} {
		_, err := Parse(payload)
		if !errors.Is(err, ErrUnrecognizedPayload) {
			t.Errorf("Parse(%.20q): expected ErrUnrecognizedPayload, got %v", payload, err)
		}
	}
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "garbage", "garbage"},
		{"ascii cut", strings.Repeat("x", 45), strings.Repeat("x", 40) + "..."},
		{"multibyte cut", strings.Repeat("é", 45), strings.Repeat("é", 40) + "..."},
		{"multibyte fits", strings.Repeat("é", 40), strings.Repeat("é", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := abbreviate(tt.in)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}

	_, err := Parse(strings.Repeat("ü ", 30))
	if err == nil || !utf8.ValidString(err.Error()) {
		t.Errorf("expected a valid UTF-8 error, got %v", err)
	}
}

func TestParserOrder(t *testing.T) {
	p := DefaultParser()
	want := []string{"autronica", "key_value", "token_scan"}
	got := p.Strategies()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}

	// A parser without the vendor strategy reads the same label by token scan.
	generic := NewParser(KeyValueStrategy{}, TokenStrategy{})
	f, err := generic.Parse("000.037.2022.223.00088_V-100_116-V-100_01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Strategy != "token_scan" || f.Brand != "" {
		t.Errorf("expected brandless token scan, got %+v", f)
	}
}

func TestFieldsUpdate(t *testing.T) {
	f := Fields{Serial: "12345", Model: "X3", Payload: "SN:12345;MODEL:X3"}
	u := f.Update()

	if u.Serial == nil || *u.Serial != "12345" {
		t.Errorf("expected serial 12345")
	}
	if u.Model == nil || *u.Model != "X3" {
		t.Errorf("expected model X3")
	}
	if u.QRData == nil || *u.QRData != f.Payload {
		t.Errorf("expected raw payload recorded")
	}
	if u.Brand != nil || u.Bus != nil || u.Group != nil || u.Address != nil || u.RangeM != nil {
		t.Errorf("unexpected fields set: %+v", u)
	}
}
