// Package attachment turns a locally picked file into a self-contained
// data: URI that can live inside a message record. Inlining file bytes in
// the store is a deliberate simplification; a production system would upload
// to blob storage and keep a reference instead.
package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies an attachment for rendering and preview purposes.
type Kind string

const (
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "document"
)

const fallbackMIME = "application/octet-stream"

// ErrNotInline is returned when decoding something that is not a data: URI.
var ErrNotInline = errors.New("attachment: not an inline data uri")

// Inline is an encoded attachment ready to be stored as message fields.
type Inline struct {
	URI  string // data:<mime>;base64,<payload>
	Name string // display name, the file's base name
	MIME string
	Kind Kind
}

// Classify maps a MIME type to an attachment kind by substring match:
// image/* is an image, application/pdf is a pdf, everything else is a
// generic document.
func Classify(mimeType string) Kind {
	switch {
	case strings.Contains(mimeType, "image"):
		return KindImage
	case strings.Contains(mimeType, "pdf"):
		return KindPDF
	default:
		return KindDocument
	}
}

// EncodeInline reads the file at path and produces its inline representation.
// Any read failure aborts the send: no partial message is ever created.
func EncodeInline(path string) (Inline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inline{}, fmt.Errorf("attachment: read %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = fallbackMIME
	}
	return Inline{
		URI:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Name: filepath.Base(path),
		MIME: mimeType,
		Kind: Classify(mimeType),
	}, nil
}

// Export decodes an inline attachment and writes it into dir under its
// display name, returning the written path.
func Export(uri, name, dir string) (string, error) {
	_, data, err := DecodeInline(uri)
	if err != nil {
		return "", err
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" {
		name = "attachment"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("attachment: export %s: %w", name, err)
	}
	return path, nil
}

// DecodeInline is the inverse of EncodeInline, used to export a received
// attachment back to disk.
func DecodeInline(uri string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotInline
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrNotInline
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("attachment: decode payload: %w", err)
	}
	return mimeType, data, nil
}
