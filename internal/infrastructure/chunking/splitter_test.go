package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	got := NewSplitter(100, 10).Split("  Amendment types: long-form and short-form.  ")
	if len(got) != 1 || got[0] != "Amendment types: long-form and short-form." {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestSplitEmptyText(t *testing.T) {
	if got := NewSplitter(10, 2).Split(" \n\n "); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}

func TestSplitBreaksOnWhitespace(t *testing.T) {
	text := "permit extension request approved today"
	got := NewSplitter(16, 0).Split(text)
	for _, chunk := range got {
		if len([]rune(chunk)) > 16 {
			t.Fatalf("chunk %q exceeds size", chunk)
		}
		for _, word := range strings.Fields(chunk) {
			if !strings.Contains(text, " "+word) && !strings.HasPrefix(text, word) {
				t.Fatalf("chunk %q cut a word", chunk)
			}
		}
	}
	if strings.Join(got, " ") != text {
		t.Fatalf("chunks do not cover the text: %q", got)
	}
}

func TestSplitOverlapRepeatsTail(t *testing.T) {
	text := strings.Repeat("a", 30)
	got := NewSplitter(10, 4).Split(text)
	if len(got) < 4 {
		t.Fatalf("expected overlapping chunks, got %q", got)
	}
	for _, chunk := range got[:len(got)-1] {
		if len(chunk) != 10 {
			t.Fatalf("unexpected chunk length %d", len(chunk))
		}
	}
}

func TestNewSplitterNormalizesOptions(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 900 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	s = NewSplitter(8, 8)
	if s.Overlap != 2 {
		t.Fatalf("overlap must be clamped, got %d", s.Overlap)
	}
}

func TestSplitCollapsesBlankLines(t *testing.T) {
	got := NewSplitter(100, 0).Split("line one   \r\n\r\n\r\n\nline two")
	if len(got) != 1 || got[0] != "line one\n\nline two" {
		t.Fatalf("unexpected chunks %q", got)
	}
}
