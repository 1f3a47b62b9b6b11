package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
)

// Stdin names standard input as a source.
const Stdin = "-"

var defaultClient = NewClient(nil)

// IsRemote reports whether src is fetched over HTTP.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Name returns the file name of src: the last element of a URL's path or
// of a local path. fallback is used for stdin and URLs without one.
func Name(src, fallback string) string {
	if src == Stdin {
		return fallback
	}
	p := src
	if IsRemote(src) {
		u, err := url.Parse(src)
		if err != nil {
			return fallback
		}
		p = u.Path
	}
	if base := path.Base(p); base != "/" && base != "." {
		return base
	}
	return fallback
}

// Read returns the contents of src.
func Read(ctx context.Context, src string) ([]byte, error) {
	switch {
	case IsRemote(src):
		return defaultClient.Fetch(ctx, src)
	case src == Stdin:
		return readAll(os.Stdin, "stdin")
	}

	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "open %s", src)
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "open %s", src)
	}
	defer f.Close()
	return readAll(f, src)
}

func readAll(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read %s", name)
	}
	if len(data) > MaxSize {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "%s is larger than %d bytes", name, MaxSize)
	}
	return data, nil
}
