package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"smokeplan/internal/domain"
)

// JSONCodec handles the native project format. Decode also accepts legacy
// project files.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Decode reads a native or legacy project
func (c *JSONCodec) Decode(r io.Reader) (*domain.Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	if IsLegacy(data) {
		scene, _, err := NewLegacyImporter().Import(bytes.NewReader(data))
		return scene, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc.scene()
}

// Encode writes snap as an indented native document
func (c *JSONCodec) Encode(w io.Writer, snap *domain.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(newDocument(snap)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
