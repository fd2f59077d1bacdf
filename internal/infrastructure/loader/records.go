package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/xuri/excelize/v2"
)

func loadCSV(path string, opts Options) ([]domain.DocumentDraft, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()
	return ReadCSV(file, filepath.Base(path), opts)
}

// ReadCSV parses a header-first CSV stream.
func ReadCSV(r io.Reader, source string, opts Options) ([]domain.DocumentDraft, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "read csv", err)
	}
	return rowsToDrafts(source, rows, opts)
}

func loadXLSX(path string, opts Options) ([]domain.DocumentDraft, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "read xlsx sheet "+sheet, err)
	}
	return rowsToDrafts(filepath.Base(path), rows, opts)
}

// rowsToDrafts treats rows[0] as the header. Each later non-blank row becomes
// one draft whose text lists "Header: value" lines.
func rowsToDrafts(source string, rows [][]string, opts Options) ([]domain.DocumentDraft, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := make([]string, len(rows[0]))
	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[i] = name
		index[strings.ToLower(name)] = i
	}

	idColumn := -1
	if opts.IDColumn != "" {
		col, ok := index[strings.ToLower(opts.IDColumn)]
		if !ok {
			return nil, domain.InvalidArgument("load records", "id column %q not found in %s", opts.IDColumn, source)
		}
		idColumn = col
	}
	textColumns, err := selectColumns(header, index, opts.TextColumns, source)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DocumentDraft, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rowNumber := n + 2
		lines := make([]string, 0, len(textColumns))
		for _, col := range textColumns {
			if value := cell(row, col); value != "" {
				lines = append(lines, header[col]+": "+value)
			}
		}
		if len(lines) == 0 {
			continue
		}

		metadata := map[string]string{
			"source": source,
			"row":    strconv.Itoa(rowNumber),
		}
		for col, name := range header {
			if value := cell(row, col); value != "" && name != "" {
				metadata[metadataKey(name)] = value
			}
		}

		id := fmt.Sprintf("%s#%d", source, rowNumber)
		if idColumn >= 0 {
			if value := cell(row, idColumn); value != "" {
				id = value
			}
		}
		out = append(out, domain.DocumentDraft{
			ID:       id,
			Text:     strings.Join(lines, "\n"),
			Metadata: metadata,
		})
	}
	return out, nil
}

func selectColumns(header []string, index map[string]int, wanted []string, source string) ([]int, error) {
	if len(wanted) == 0 {
		cols := make([]int, 0, len(header))
		for i, name := range header {
			if name != "" {
				cols = append(cols, i)
			}
		}
		return cols, nil
	}
	cols := make([]int, 0, len(wanted))
	for _, name := range wanted {
		col, ok := index[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, domain.InvalidArgument("load records", "text column %q not found in %s", name, source)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func metadataKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
