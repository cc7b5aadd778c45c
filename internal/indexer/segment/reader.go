package segment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Open reads a serialized index from path in any of the output formats.
func Open(path string) (*SearchIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}
	return Decode(data, DetectFormat(path, data))
}

// Locate returns the index file in dir, preferring the formats that are
// fastest to load.
func Locate(dir string) (string, error) {
	for _, format := range []string{config.FormatCBOR, config.FormatJSONGz, config.FormatJSON, config.FormatJS} {
		path := filepath.Join(dir, FileName(format))
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s file in %s", apperrors.ErrIndexNotLoaded, BaseName, dir)
}

// DetectFormat picks a format from the file extension, falling back to the
// content for the js wrapper and gzip streams.
func DetectFormat(path string, data []byte) string {
	switch {
	case strings.HasSuffix(path, "."+config.FormatJSONGz), bytes.HasPrefix(data, gzipMagic):
		return config.FormatJSONGz
	case strings.HasSuffix(path, "."+config.FormatCBOR):
		return config.FormatCBOR
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte(jsPrefix)):
		return config.FormatJS
	default:
		return config.FormatJSON
	}
}

// Decode parses data in the given format.
func Decode(data []byte, format string) (*SearchIndex, error) {
	switch format {
	case config.FormatCBOR:
		return DecodeSnapshot(data)
	case config.FormatJSONGz:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: opening gzip stream: %v", apperrors.ErrInvalidIndex, err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: reading gzip stream: %v", apperrors.ErrInvalidIndex, err)
		}
		return decodeJSON(raw)
	case config.FormatJS:
		raw, err := unwrapJS(data)
		if err != nil {
			return nil, err
		}
		return decodeJSON(raw)
	case config.FormatJSON:
		return decodeJSON(data)
	default:
		return nil, fmt.Errorf("unknown index format %q", format)
	}
}

func unwrapJS(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte(jsPrefix)) {
		return nil, fmt.Errorf("%w: missing %q wrapper", apperrors.ErrInvalidIndex, jsPrefix)
	}
	trimmed = bytes.TrimPrefix(trimmed, []byte(jsPrefix))
	trimmed = bytes.TrimSuffix(trimmed, []byte(";"))
	if !bytes.HasSuffix(trimmed, []byte(")")) {
		return nil, fmt.Errorf("%w: unterminated js wrapper", apperrors.ErrInvalidIndex)
	}
	return bytes.TrimSuffix(trimmed, []byte(")")), nil
}

func decodeJSON(data []byte) (*SearchIndex, error) {
	var si SearchIndex
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidIndex, err)
	}
	if si.Index.DocumentStore == nil {
		return nil, fmt.Errorf("%w: missing documentStore", apperrors.ErrInvalidIndex)
	}
	return &si, nil
}
