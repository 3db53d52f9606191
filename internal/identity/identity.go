// Package identity decodes QR payloads printed on addressable devices into
// candidate detector fields.
//
// Payload formats differ between vendors and firmware revisions, so parsing
// runs an ordered list of independent strategies and keeps the first one that
// recognises anything. Parsing is pure: the result is a preview that the
// caller applies to a detector explicitly.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"smokeplan/internal/domain"
)

// MaxPayloadLen bounds the payload size accepted by Parse.
const MaxPayloadLen = 4096

// ErrUnrecognizedPayload is returned when no strategy finds a usable token.
var ErrUnrecognizedPayload = errors.New("unrecognized payload")

// Fields is a partially populated detector identity. Empty strings mean the
// payload did not provide that field.
type Fields struct {
	Serial   string `json:"serial,omitempty"`
	Model    string `json:"model,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Bus      string `json:"bus,omitempty"`
	Group    string `json:"group,omitempty"`
	Address  string `json:"address,omitempty"`
	Strategy string `json:"strategy"`
	Payload  string `json:"payload"`
}

// Empty reports whether no identity field was found.
func (f Fields) Empty() bool {
	return f.Serial == "" && f.Model == "" && f.Brand == "" &&
		f.Bus == "" && f.Group == "" && f.Address == ""
}

// Update converts the parsed fields into a detector update. Only fields that
// were found are set; the raw payload is always recorded.
func (f Fields) Update() domain.DetectorUpdate {
	u := domain.DetectorUpdate{QRData: domain.StringPtr(f.Payload)}
	set := func(dst **string, v string) {
		if v != "" {
			*dst = domain.StringPtr(v)
		}
	}
	set(&u.Serial, f.Serial)
	set(&u.Model, f.Model)
	set(&u.Brand, f.Brand)
	set(&u.Bus, f.Bus)
	set(&u.Group, f.Group)
	set(&u.Address, f.Address)
	return u
}

// Strategy recognises one payload format.
type Strategy interface {
	Name() string
	Parse(payload string) (Fields, bool)
}

// Parser runs strategies in order and stops at the first partial success.
type Parser struct {
	strategies []Strategy
}

// NewParser creates a parser with the given strategies, tried in order.
func NewParser(strategies ...Strategy) *Parser {
	return &Parser{strategies: strategies}
}

// DefaultParser tries the Autronica format, then key/value pairs, then a
// free token scan.
func DefaultParser() *Parser {
	return NewParser(AutronicaStrategy{}, KeyValueStrategy{}, TokenStrategy{})
}

// Strategies returns the strategy names in the order they are tried.
func (p *Parser) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}

// Parse decodes payload into candidate fields.
func (p *Parser) Parse(payload string) (Fields, error) {
	text := strings.TrimSpace(payload)
	if text == "" {
		return Fields{}, fmt.Errorf("%w: empty payload", ErrUnrecognizedPayload)
	}
	if len(text) > MaxPayloadLen {
		return Fields{}, fmt.Errorf("%w: payload longer than %d bytes", ErrUnrecognizedPayload, MaxPayloadLen)
	}

	for _, s := range p.strategies {
		f, ok := s.Parse(text)
		if !ok || f.Empty() {
			continue
		}
		f.Strategy = s.Name()
		f.Payload = text
		return f, nil
	}
	return Fields{}, fmt.Errorf("%w: no serial or model token in %q", ErrUnrecognizedPayload, abbreviate(text))
}

// Parse decodes payload with the default strategies.
func Parse(payload string) (Fields, error) {
	return DefaultParser().Parse(payload)
}

func abbreviate(s string) string {
	const max = 40
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
