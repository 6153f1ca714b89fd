package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
	"github.com/slaimbot/goslaim/internal/memory"
)

// Think generates free-form persona answers with conversation context.
type Think struct {
	gateway      Gateway
	models       ModelSource
	mem          *memory.Store
	systemPrompt string
}

func NewThink(gateway Gateway, models ModelSource, mem *memory.Store, systemPrompt string) *Think {
	return &Think{gateway: gateway, models: models, mem: mem, systemPrompt: systemPrompt}
}

// Reply answers text in the persona voice. Failures are converted to a
// user-facing apology, the error is logged here.
func (t *Think) Reply(ctx context.Context, chatID int64, text string) string {
	prompt := t.buildPrompt(chatID, text)

	response, err := t.gateway.Generate(ctx, t.models.MainModel(), prompt)
	if err != nil {
		L_error("think: generate failed for chat %d: %v", chatID, err)
		return llm.FormatErrorForUser(err)
	}

	cleaned := CleanModelOutput(response)
	t.mem.Append(chatID, memory.RoleUser, text)
	t.mem.Append(chatID, memory.RoleAssistant, cleaned)
	return cleaned
}

// Summarize answers text without touching conversation memory. Used by the
// search and browse agents whose intermediate content should not pollute
// the chat history.
func (t *Think) Summarize(ctx context.Context, prompt string) (string, error) {
	response, err := t.gateway.Generate(ctx, t.models.MainModel(), prompt)
	if err != nil {
		return "", err
	}
	return CleanModelOutput(response), nil
}

func (t *Think) buildPrompt(chatID int64, text string) string {
	var b strings.Builder
	b.WriteString(t.systemPrompt)
	if history := t.mem.Context(chatID); history != "" {
		fmt.Fprintf(&b, "\n\nКонтекст предыдущих сообщений:\n%s", history)
	}
	fmt.Fprintf(&b, "\n\nТекущее сообщение:\n%s", text)
	return b.String()
}

// CleanModelOutput strips the HTML line breaks some models emit instead of
// newlines.
func CleanModelOutput(text string) string {
	replacer := strings.NewReplacer(
		"<br>", "\n",
		"</br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
	)
	return strings.TrimSpace(replacer.Replace(text))
}
