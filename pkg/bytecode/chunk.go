package bytecode

import (
	"encoding/base64"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Chunk is a single compiled script loaded from a loose file. Header is only
// set when the file carried a marker block and holds the text preceding the
// payload.
type Chunk struct {
	Base64 string
	Header string
}

// FromFile loads a chunk from a file that contains either raw bytecode, a
// base64 encoded chunk or a dumped script source with a marker block.
func FromFile(path string) (Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chunk{}, eris.Wrapf(err, "failed to read %s", path)
	}

	if IsBytecode(data) {
		return Chunk{Base64: base64.StdEncoding.EncodeToString(data)}, nil
	}

	text := strings.TrimSpace(string(data))
	if decoded, err := base64.StdEncoding.DecodeString(text); err == nil && IsBytecode(decoded) {
		return Chunk{Base64: text}, nil
	}

	if marker, ok := FindMarker(string(data)); ok {
		return Chunk{Base64: marker.Base64, Header: marker.Prefix}, nil
	}

	return Chunk{}, eris.Errorf("no bytecode found in %s", path)
}
