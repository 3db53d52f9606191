package codec

import (
	"fmt"
	"io"

	"smokeplan/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec writes the native document as YAML, for hand editing and diffs
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Decode reads a YAML project
func (c *YAMLCodec) Decode(r io.Reader) (*domain.Scene, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc.scene()
}

// Encode writes snap as YAML
func (c *YAMLCodec) Encode(w io.Writer, snap *domain.Snapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(newDocument(snap)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}
