package agents

import (
	"context"
	"strings"
	"unicode"

	. "github.com/slaimbot/goslaim/internal/logging"
)

// promptKeywords are the trigger words stripped from a generation request,
// what follows the keyword is the actual description.
var promptKeywords = []string{"нарисуй", "сгенерируй", "создай", "generate", "draw", "create"}

const translatePromptTemplate = "Translate this image description to English. " +
	"Keep it concise and descriptive. Focus on visual elements. " +
	"Reply with the translation only. Text to translate: "

// Prompt prepares image-generation prompts: extracts the description from
// the message, translates Russian descriptions to English through the main
// model and strips anything Stable Diffusion chokes on.
type Prompt struct {
	gateway Gateway
	models  ModelSource
}

func NewPrompt(gateway Gateway, models ModelSource) *Prompt {
	return &Prompt{gateway: gateway, models: models}
}

// Prepare turns raw message text into an English SD prompt. The original
// text is used as the description when no trigger keyword is present.
func (a *Prompt) Prepare(ctx context.Context, text string) (string, error) {
	description := ExtractDescription(text)
	if description == "" {
		description = strings.TrimSpace(text)
	}

	if HasCyrillic(description) {
		translated, err := a.gateway.Generate(ctx, a.models.MainModel(), translatePromptTemplate+description)
		if err != nil {
			return "", err
		}
		description = CleanModelOutput(translated)
		L_debug("prompt: translated description", "result", description)
	}

	return CleanForDiffusion(description), nil
}

// ExtractDescription returns the text after the first trigger keyword, or
// "" when none is present.
func ExtractDescription(text string) string {
	lowered := strings.ToLower(text)
	for _, kw := range promptKeywords {
		if idx := strings.Index(lowered, kw); idx >= 0 {
			return strings.TrimSpace(lowered[idx+len(kw):])
		}
	}
	return ""
}

// CleanForDiffusion strips Cyrillic letters, emoji and collapsed
// whitespace. The diffusion backend only understands plain English text.
func CleanForDiffusion(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
		case unicode.In(r, unicode.So, unicode.Sk): // emoji and symbol marks
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
