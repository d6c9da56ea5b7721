package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain"
)

// Prompt template placeholders.
const (
	PlaceholderOnboarding  = "{onboarding}"
	PlaceholderChatHistory = "{chat_history}"
	PlaceholderContext     = "{context}"
	PlaceholderQuestion    = "{question}"
)

// PromptValues fill the tenant template.
type PromptValues struct {
	Onboarding  string
	ChatHistory string
	Context     string
	Question    string
}

// RenderPrompt substitutes the placeholders of a tenant template.
// Unknown placeholders are left as they are.
func RenderPrompt(template string, v PromptValues) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", domain.ErrPromptTemplateMissing
	}
	r := strings.NewReplacer(
		PlaceholderOnboarding, v.Onboarding,
		PlaceholderChatHistory, v.ChatHistory,
		PlaceholderContext, v.Context,
		PlaceholderQuestion, v.Question,
	)
	return r.Replace(template), nil
}

// FormatOnboarding renders answers as "key: value" lines in key order.
func FormatOnboarding(answers map[string]string) string {
	if len(answers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", k, answers[k])
	}
	return b.String()
}
