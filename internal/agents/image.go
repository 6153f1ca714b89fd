package agents

import (
	"context"
	"unicode"

	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
	"github.com/slaimbot/goslaim/internal/memory"
)

const imageDescribeAttempts = 3

const imageDescribePrompt = "Используя изображение, переданное через параметр 'image', " +
	"опиши, что на нем изображено. Ответ должен содержать уникальное и подробное " +
	"описание изображения, без шаблонных фраз. Обязательно отвечай только на русском языке!"

const imageRetriesExhausted = "Извините, у меня возникли проблемы с описанием " +
	"изображения на русском языке. Давайте попробуем еще раз! 🌟"

const imageEmptyPayload = "Ой-ой! 😢 Слайм не может найти изображение. " +
	"Может быть, попробуем другое? 🎨"

// Image describes photos with the vision model. The model tends to slip
// into English, so the reply is retried until it contains Cyrillic letters.
type Image struct {
	gateway Gateway
	models  ModelSource
	mem     *memory.Store
}

func NewImage(gateway Gateway, models ModelSource, mem *memory.Store) *Image {
	return &Image{gateway: gateway, models: models, mem: mem}
}

// Describe returns a user-facing description of the image. All failures
// resolve to apology text, never an error.
func (a *Image) Describe(ctx context.Context, chatID int64, image []byte) string {
	if len(image) == 0 {
		return imageEmptyPayload
	}

	model := a.models.VisionModel()
	for attempt := 1; attempt <= imageDescribeAttempts; attempt++ {
		response, err := a.gateway.GenerateWithImage(ctx, model, imageDescribePrompt, image)
		if err != nil {
			L_error("image: describe attempt %d/%d failed: %v", attempt, imageDescribeAttempts, err)
			return llm.FormatErrorForUser(err)
		}

		cleaned := CleanModelOutput(response)
		if !HasCyrillic(cleaned) {
			L_warn("image: attempt %d/%d returned no Cyrillic, retrying", attempt, imageDescribeAttempts)
			continue
		}

		a.mem.Append(chatID, memory.RoleUser, "Пользователь отправил изображение")
		a.mem.Append(chatID, memory.RoleAssistant, cleaned)
		return cleaned
	}

	L_error("image: all %d attempts returned non-Russian text", imageDescribeAttempts)
	return imageRetriesExhausted
}

// DescribeRaw returns the description or an error, without memory writes.
// The coordinator uses it when the description feeds a follow-up prompt.
func (a *Image) DescribeRaw(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", llm.ErrValidation{Field: "image", Reason: "empty payload"}
	}

	model := a.models.VisionModel()
	var last string
	for attempt := 1; attempt <= imageDescribeAttempts; attempt++ {
		response, err := a.gateway.GenerateWithImage(ctx, model, imageDescribePrompt, image)
		if err != nil {
			return "", err
		}
		last = CleanModelOutput(response)
		if HasCyrillic(last) {
			return last, nil
		}
	}
	// The last reply is still usable content even in the wrong language.
	return last, nil
}

// HasCyrillic reports whether text contains at least one Cyrillic letter.
// Only letters count, so digits-only or punctuation-only replies fail the
// check instead of passing it by accident.
func HasCyrillic(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
