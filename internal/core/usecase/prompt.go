package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

const (
	systemInstruction = `You are a permit query assistant.
Answer only from the provided context. If the context does not contain the answer, say so directly.
Do not invent permit numbers, dates or amendment types.`

	documentOpen    = "<<<DOCUMENT id=%s score=%.4f>>>"
	documentClose   = "<<<END DOCUMENT>>>"
	noContextMarker = "NO CONTEXT AVAILABLE"
	contextHeading  = "Context:"
	questionHeading = "Question:"
)

// buildMessages renders the deterministic prompt for one question.
func buildMessages(question string, context []domain.RetrievalResult) []domain.ChatMessage {
	var b strings.Builder
	b.WriteString(contextHeading)
	b.WriteString("\n")
	if len(context) == 0 {
		b.WriteString(noContextMarker)
		b.WriteString("\n")
	}
	for _, item := range context {
		b.WriteString(fmt.Sprintf(documentOpen, item.Document.ID, item.Score))
		b.WriteString("\n")
		b.WriteString(item.Document.Text)
		b.WriteString("\n")
		b.WriteString(documentClose)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(questionHeading)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: systemInstruction},
		{Role: domain.RoleUser, Content: b.String()},
	}
}

// fitBudget keeps the highest-scored documents whose combined text length
// (in runes) stays within budget. A non-positive budget disables the limit.
func fitBudget(context []domain.RetrievalResult, budget int) ([]domain.RetrievalResult, int) {
	ranked := make([]domain.RetrievalResult, len(context))
	copy(ranked, context)
	domain.SortResults(ranked)
	if budget <= 0 {
		return ranked, 0
	}

	total := 0
	for _, item := range ranked {
		total += len([]rune(item.Document.Text))
	}
	dropped := 0
	for total > budget && len(ranked) > 0 {
		last := ranked[len(ranked)-1]
		total -= len([]rune(last.Document.Text))
		ranked = ranked[:len(ranked)-1]
		dropped++
	}
	return ranked, dropped
}
