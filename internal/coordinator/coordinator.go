// Package coordinator sequences multi-step flows across the agents and
// owns the one piece of cross-request state: the pending-dispatch marker
// that deduplicates photo and text events emitted for the same update.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/slaimbot/goslaim/internal/agents"
	"github.com/slaimbot/goslaim/internal/intent"
	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
)

const genericFallback = "Ой-ой! 😢 Что-то пошло не так. Давай попробуем еще раз! 🌟"

const combineImagePrompt = "Пользователь прислал изображение с подписью. " +
	"Ниже описание изображения и подпись. Ответь пользователю, учитывая и то и другое. " +
	"Если в описании встречаются бессмысленные или искажённые фрагменты, просто игнорируй их.\n\n" +
	"Описание изображения:\n%s\n\nПодпись пользователя:\n%s"

type marker struct {
	messageID int
	userID    int64
}

// Coordinator routes inbound events to agents and assembles multi-step
// replies. Safe for concurrent use.
type Coordinator struct {
	classifier *intent.Classifier
	think      *agents.Think
	image      *agents.Image
	document   *agents.Document
	search     *agents.WebSearch
	browse     *agents.WebBrowse

	mu      sync.Mutex
	pending *marker
}

func New(classifier *intent.Classifier, think *agents.Think, image *agents.Image, document *agents.Document, search *agents.WebSearch, browse *agents.WebBrowse) *Coordinator {
	return &Coordinator{
		classifier: classifier,
		think:      think,
		image:      image,
		document:   document,
		search:     search,
		browse:     browse,
	}
}

// HandleText classifies and answers a text message. The second return is
// false when the message was suppressed because its update is already
// being handled as an image.
func (c *Coordinator) HandleText(ctx context.Context, chatID, userID int64, messageID int, text string) (reply string, handled bool) {
	if c.ImagePending(messageID, userID) {
		L_debug("coordinator: text suppressed, image flow owns update", "message_id", messageID)
		return "", false
	}

	requestID := shortID()
	L_info("coordinator: text request", "id", requestID, "chat", chatID)

	defer func() {
		if r := recover(); r != nil {
			L_error("coordinator: text handler panicked", "id", requestID, "panic", r)
			reply, handled = genericFallback, true
		}
	}()

	if looksLikeURL(text) {
		return c.browse.Respond(ctx, text), true
	}

	result := c.classifier.Classify(text)
	L_debug("coordinator: classified", "id", requestID, "action", result.Action.String())

	switch result.Action {
	case intent.ActionCanned, intent.ActionRequestImage, intent.ActionRequestFile:
		return result.Reply, true
	case intent.ActionSearch:
		return c.search.Respond(ctx, stripSearchKeywords(result.Query)), true
	default:
		return c.think.Reply(ctx, chatID, text), true
	}
}

// HandleImage runs the image flow: describe, combine with the caption,
// answer. The pending marker is set for the duration of the call and
// cleared unconditionally, a crash here must not suppress future text.
func (c *Coordinator) HandleImage(ctx context.Context, chatID, userID int64, messageID int, image []byte, caption string) (reply string) {
	c.setPending(messageID, userID)
	defer c.clearPending()

	requestID := shortID()
	L_info("coordinator: image request", "id", requestID, "chat", chatID, "bytes", len(image))

	defer func() {
		if r := recover(); r != nil {
			L_error("coordinator: image handler panicked", "id", requestID, "panic", r)
			reply = genericFallback
		}
	}()

	caption = strings.TrimSpace(caption)
	if caption == "" {
		return c.image.Describe(ctx, chatID, image)
	}

	description, err := c.image.DescribeRaw(ctx, image)
	if err != nil {
		L_error("coordinator: describe failed", "id", requestID, "error", err)
		return llm.FormatErrorForUser(err)
	}

	return c.think.Reply(ctx, chatID, fmt.Sprintf(combineImagePrompt, description, caption))
}

// HandleDocument summarizes an uploaded document.
func (c *Coordinator) HandleDocument(ctx context.Context, chatID int64, name string, content []byte, caption string) (reply string) {
	requestID := shortID()
	L_info("coordinator: document request", "id", requestID, "chat", chatID, "name", name)

	defer func() {
		if r := recover(); r != nil {
			L_error("coordinator: document handler panicked", "id", requestID, "panic", r)
			reply = genericFallback
		}
	}()

	return c.document.Summarize(ctx, name, content, caption)
}

// HandleSearch runs an explicit /search command.
func (c *Coordinator) HandleSearch(ctx context.Context, query string) string {
	return c.search.Respond(ctx, query)
}

// ImagePending reports whether the marker matches this update.
func (c *Coordinator) ImagePending(messageID int, userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil && c.pending.messageID == messageID && c.pending.userID == userID
}

func (c *Coordinator) setPending(messageID int, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &marker{messageID: messageID, userID: userID}
}

func (c *Coordinator) clearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

func shortID() string {
	return uuid.NewString()[:8]
}

func looksLikeURL(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.ContainsAny(trimmed, " \n\t") {
		return false
	}
	return strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")
}

// stripSearchKeywords removes the trigger word so the engine gets the bare
// query, "найди прогноз погоды" searches for "прогноз погоды".
func stripSearchKeywords(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	for _, kw := range []string{"найди", "поищи", "поиск", "ищи", "search"} {
		if strings.HasPrefix(lowered, kw) {
			return strings.TrimSpace(lowered[len(kw):])
		}
	}
	return strings.TrimSpace(query)
}
