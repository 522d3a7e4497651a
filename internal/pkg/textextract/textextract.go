// Package textextract turns uploaded files into plain text.
package textextract

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var ErrUnsupportedType = errors.New("unsupported file type")

type extractor func(r io.Reader, ext string) (string, error)

var extractors = map[string]extractor{
	".pdf":  extractPDF,
	".docx": extractOffice,
	".odt":  extractOffice,
	".rtf":  extractOffice,
	".txt":  extractPlain,
	".md":   extractPlain,
	".csv":  extractPlain,
	".json": extractPlain,
	".html": extractPlain,
	".htm":  extractPlain,
}

// Supported reports whether filename has an extension Extract understands.
func Supported(filename string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract reads r fully and returns its text according to the extension of
// filename. An empty input gives an empty string and no error.
func Extract(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := extractors[ext]
	if !ok {
		return "", ErrUnsupportedType
	}
	return fn(r, ext)
}

func extractPlain(r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), ""), nil
	}
	return string(b), nil
}
