// Package codec reads and writes project files.
//
// The native format is a versioned JSON document (".sdp" or ".json"); the
// same document can be written as YAML. Project files from the original
// desktop tool are detected and imported by the JSON decoder.
package codec

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"smokeplan/internal/domain"
)

// ErrUnknownFormat is returned for file extensions no codec handles.
var ErrUnknownFormat = errors.New("unknown project format")

// Decoder reads a project into a live scene
type Decoder interface {
	Decode(r io.Reader) (*domain.Scene, error)
	Format() string
}

// Encoder writes a scene snapshot
type Encoder interface {
	Encode(w io.Writer, snap *domain.Snapshot) error
	Format() string
}

// Codec both reads and writes one format
type Codec interface {
	Decoder
	Encoder
}

// ForPath picks a codec from the file extension.
func ForPath(path string) (Codec, error) {
	return ForFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// ForFormat picks a codec by name or extension.
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "sdp", "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
