package scripted

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

func userPrompt(question string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "system"},
		{Role: domain.RoleUser, Content: "Context:\nTimeline extension for permit B234567\n\nQuestion:\n" + question + "\n"},
	}
}

func TestCompleteMatchesQuestionOnly(t *testing.T) {
	b := New(DefaultScript())
	answer, err := b.Complete(context.Background(), userPrompt("What amendment types are there?"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(answer, "long-form to short-form") {
		t.Fatalf("expected amendment answer, got %q", answer)
	}
}

func TestCompleteFallsBack(t *testing.T) {
	answer, err := New(DefaultScript()).Complete(context.Background(), userPrompt("Who owns the building?"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if answer != DefaultScript().Fallback {
		t.Fatalf("expected fallback, got %q", answer)
	}
}

func TestCompleteWithoutFallbackFails(t *testing.T) {
	_, err := New(Script{}).Complete(context.Background(), userPrompt("anything"))
	if !domain.IsKind(err, domain.ErrAnswerGeneration) {
		t.Fatalf("expected ErrAnswerGeneration, got %v", err)
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	content := "rules:\n  - keywords: [fee]\n    answer: Fees are listed per permit.\nfallback: none\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	script, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript() error = %v", err)
	}
	answer, _ := New(script).Complete(context.Background(), userPrompt("What is the fee?"))
	if answer != "Fees are listed per permit." {
		t.Fatalf("unexpected answer %q", answer)
	}
}
