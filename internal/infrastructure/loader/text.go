package loader

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/ledongthuc/pdf"
)

func loadText(path string, opts Options) ([]domain.DocumentDraft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, domain.InvalidArgument("load text", "%s is not valid UTF-8", path)
	}
	return chunkDrafts(path, string(raw), opts), nil
}

func loadPDF(path string, opts Options) ([]domain.DocumentDraft, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "open pdf", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "extract pdf text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	return chunkDrafts(path, string(raw), opts), nil
}
