package segment

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
)

// BaseName is the file name shared by every output format.
const BaseName = "searchindex"

const (
	jsPrefix = "Object.assign(window.search, "
	jsSuffix = ");"
)

// FileName returns the output file name for a format.
func FileName(format string) string {
	return BaseName + "." + format
}

// Writer serialises a SearchIndex into an output directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer that writes into the given directory.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:    dir,
		logger: slog.Default().With("component", "segment-writer"),
	}
}

// Write creates one file per format and returns their paths. Each file is
// written to a .tmp file first and renamed on success.
func (w *Writer) Write(si *SearchIndex, formats []string) ([]string, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output formats given")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	canonical, err := Encode(si)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		data, err := render(si, canonical, format)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", format, err)
		}
		path := filepath.Join(w.dir, FileName(format))
		if err := writeAtomic(path, data); err != nil {
			return nil, err
		}
		w.logger.Info("search index written", "path", path, "format", format, "bytes", len(data))
		paths = append(paths, path)
	}
	return paths, nil
}

func render(si *SearchIndex, canonical []byte, format string) ([]byte, error) {
	switch format {
	case config.FormatJS:
		var buf bytes.Buffer
		buf.Grow(len(jsPrefix) + len(canonical) + len(jsSuffix))
		buf.WriteString(jsPrefix)
		buf.Write(canonical)
		buf.WriteString(jsSuffix)
		return buf.Bytes(), nil
	case config.FormatJSON:
		return canonical, nil
	case config.FormatJSONGz:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(canonical); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case config.FormatCBOR:
		return EncodeSnapshot(si)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}
