package tree

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
)

// Format names an input encoding.
type Format string

const (
	FormatNewick Format = "newick"
	FormatJSON   Format = "json"
)

var newickExts = map[string]bool{
	".nwk": true, ".newick": true, ".tre": true, ".tree": true, ".trees": true, ".nw": true,
}

// DetectFormat picks the format from the file extension, falling back to
// sniffing the first non-space byte of data.
func DetectFormat(path string, data []byte) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".json":
		return FormatJSON
	case newickExts[ext]:
		return FormatNewick
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatNewick
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) ([]*Node, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatNewick:
		return ParseNewick(string(data))
	default:
		return nil, perrors.New(perrors.ErrCodeInvalidFormat, "unknown tree format %q", format)
	}
}

// ReadFile reads, parses and prepares the trees stored at path.
func ReadFile(path string) ([]*Node, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read %s", path)
	}
	trees, err := Parse(data, DetectFormat(path, data))
	if err != nil {
		return nil, err
	}
	if err := Prepare(trees); err != nil {
		return nil, err
	}
	return trees, nil
}
