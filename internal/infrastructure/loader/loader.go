// Package loader turns permit exports (CSV, XLSX, PDF and plain text) into
// document drafts ready for ingestion.
package loader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/chunking"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

// Options controls how records become documents.
type Options struct {
	// IDColumn names the column holding a stable record id. When empty the id
	// is derived from the file name and row number.
	IDColumn string
	// TextColumns restricts which columns go into the document text. Empty
	// means every non-empty column.
	TextColumns []string
	// Sheet selects the XLSX sheet; the first sheet is used when empty.
	Sheet string

	ChunkSize    int
	ChunkOverlap int
}

// DetectFormat maps a file extension to a supported format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".md", ".text":
		return FormatText, nil
	default:
		return "", domain.InvalidArgument("detect format", "unsupported file type %q", filepath.Ext(path))
	}
}

// Load reads one file and returns its drafts in file order.
func Load(path string, opts Options) ([]domain.DocumentDraft, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return loadCSV(path, opts)
	case FormatXLSX:
		return loadXLSX(path, opts)
	case FormatPDF:
		return loadPDF(path, opts)
	default:
		return loadText(path, opts)
	}
}

// LoadAll loads every path and concatenates the drafts.
func LoadAll(paths []string, opts Options) ([]domain.DocumentDraft, error) {
	var out []domain.DocumentDraft
	for _, path := range paths {
		drafts, err := Load(path, opts)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		out = append(out, drafts...)
	}
	return out, nil
}

func (o Options) splitter() *chunking.Splitter {
	return chunking.NewSplitter(o.ChunkSize, o.ChunkOverlap)
}

// chunkDrafts splits free text into drafts with ids "<file>#<n>".
func chunkDrafts(path, text string, opts Options) []domain.DocumentDraft {
	source := filepath.Base(path)
	chunks := opts.splitter().Split(text)
	out := make([]domain.DocumentDraft, 0, len(chunks))
	for i, chunk := range chunks {
		out = append(out, domain.DocumentDraft{
			ID:   fmt.Sprintf("%s#%d", source, i+1),
			Text: chunk,
			Metadata: map[string]string{
				"source": source,
				"chunk":  strconv.Itoa(i + 1),
			},
		})
	}
	return out
}
