// Package scripted is a chat backend that answers from a fixed script of
// keyword rules. It never touches the network.
package scripted

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

type Rule struct {
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

type Script struct {
	Rules    []Rule `yaml:"rules"`
	Fallback string `yaml:"fallback"`
}

// DefaultScript holds the sample permit answers used in demo mode.
func DefaultScript() Script {
	return Script{
		Rules: []Rule{
			{
				Keywords: []string{"amendment", "amend"},
				Answer:   "Amendments on record convert permits from long-form to short-form, as in permit A1157640.",
			},
			{
				Keywords: []string{"extension", "timeline", "deadline"},
				Answer:   "Timeline extensions were granted for permit B234567.",
			},
			{
				Keywords: []string{"status", "approved", "pending"},
				Answer:   "Permit status is tracked per record; approved permits list an issue date, pending ones do not.",
			},
		},
		Fallback: "The scripted demo has no answer for that question.",
	}
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if len(script.Rules) == 0 && strings.TrimSpace(script.Fallback) == "" {
		return Script{}, fmt.Errorf("script %s has no rules and no fallback", path)
	}
	return script, nil
}

type Backend struct {
	script Script
}

func New(script Script) *Backend {
	return &Backend{script: script}
}

// Complete matches the question of the last user message against the rules
// in order. The first rule with any keyword present wins.
func (b *Backend) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.WrapError(domain.ErrCancelled, "scripted completion", err)
	}
	question := strings.ToLower(lastQuestion(messages))
	for _, rule := range b.script.Rules {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(question, kw) {
				return rule.Answer, nil
			}
		}
	}
	if strings.TrimSpace(b.script.Fallback) == "" {
		return "", domain.WrapError(domain.ErrAnswerGeneration, "scripted completion", fmt.Errorf("no rule matched"))
	}
	return b.script.Fallback, nil
}

// lastQuestion returns the text after the final "Question:" heading of the
// last user message, or the whole message when there is none.
func lastQuestion(messages []domain.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}
		content := messages[i].Content
		if idx := strings.LastIndex(content, "Question:"); idx >= 0 {
			return content[idx+len("Question:"):]
		}
		return content
	}
	return ""
}
