package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
)

const documentTooLarge = "Ой! 😅 Этот файл слишком большой для меня. Пришли что-нибудь поменьше."

const documentNotText = "Хм, я умею читать только текстовые документы 📄 Этот формат мне не по зубам."

const documentPromptTemplate = "Ниже содержимое документа, который прислал пользователь. " +
	"Кратко перескажи его суть на русском языке и ответь на вопрос пользователя, если он есть.\n\n" +
	"Вопрос пользователя: %s\n\nСодержимое документа:\n%s"

// Document summarizes uploaded text documents through the main model. The
// content is treated as opaque text, there is no format-specific parsing.
type Document struct {
	think    *Think
	maxBytes int64
}

func NewDocument(think *Think, maxBytes int64) *Document {
	return &Document{think: think, maxBytes: maxBytes}
}

// Summarize produces a user-facing summary of the document. Non-text
// formats and oversized files get a canned refusal.
func (a *Document) Summarize(ctx context.Context, name string, content []byte, question string) string {
	if int64(len(content)) > a.maxBytes {
		L_warn("document: %s rejected, %d bytes over limit %d", name, len(content), a.maxBytes)
		return documentTooLarge
	}
	if len(content) == 0 {
		return llm.FormatErrorForUser(llm.ErrValidation{Field: "document", Reason: "empty file"})
	}

	mime := mimetype.Detect(content)
	if !isTextual(mime) {
		L_warn("document: %s rejected, detected %s", name, mime.String())
		return documentNotText
	}

	if question == "" {
		question = "(вопроса нет, просто перескажи документ)"
	}
	prompt := fmt.Sprintf(documentPromptTemplate, question, string(content))

	summary, err := a.think.Summarize(ctx, prompt)
	if err != nil {
		L_error("document: summarize %s failed: %v", name, err)
		return llm.FormatErrorForUser(err)
	}
	return summary
}

func isTextual(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return strings.HasSuffix(mime.String(), "json") || strings.HasSuffix(mime.String(), "xml")
}
