// Package telegram is the delivery adapter: it maps bot updates onto the
// coordinator and renders replies into Telegram HTML.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/slaimbot/goslaim/internal/admin"
	"github.com/slaimbot/goslaim/internal/agents"
	"github.com/slaimbot/goslaim/internal/config"
	"github.com/slaimbot/goslaim/internal/coordinator"
	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
	"github.com/slaimbot/goslaim/internal/media"
	"github.com/slaimbot/goslaim/internal/memory"
	"github.com/slaimbot/goslaim/internal/models"
	"github.com/slaimbot/goslaim/internal/sd"
)

// Telegram rejects messages over 4096 chars; stay under with headroom
// for the trailing ellipsis.
const maxMessageChars = 4000

const requestTimeout = 10 * time.Minute

// Deps bundles everything the bot needs.
type Deps struct {
	Config    *config.Config
	Persona   *config.Persona
	Coord     *coordinator.Coordinator
	Memory    *memory.Store
	Admins    *admin.Store
	Selection *models.Selection
	Gateway   *llm.Client
	Diffusion *sd.Client
	Prompter  *agents.Prompt
}

// Bot wraps the telebot instance and its handlers.
type Bot struct {
	bot  *tele.Bot
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc
}

// New connects to Telegram and registers handlers.
func New(deps Deps) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	L_info("telegram: connected",
		"bot", "@"+bot.Me.Username,
		"name", bot.Me.FirstName,
		"id", bot.Me.ID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{bot: bot, deps: deps, ctx: ctx, cancel: cancel}
	b.setupHandlers()
	return b, nil
}

// Start blocks polling for updates until Stop is called.
func (b *Bot) Start() {
	L_info("telegram: polling for updates")
	b.bot.Start()
}

// Stop halts polling and cancels in-flight handlers.
func (b *Bot) Stop() {
	b.cancel()
	b.bot.Stop()
}

func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", func(c tele.Context) error {
		return c.Send(b.deps.Persona.Replies.Welcome)
	})
	b.bot.Handle("/help", func(c tele.Context) error {
		return c.Send(b.deps.Persona.Replies.Help)
	})
	b.bot.Handle("/about", func(c tele.Context) error {
		return c.Send(b.deps.Persona.Replies.About)
	})
	b.bot.Handle("/reset", func(c tele.Context) error {
		b.deps.Memory.Clear(c.Chat().ID)
		return c.Send("Готово! Я забыл нашу переписку 🧽")
	})

	b.bot.Handle("/search", b.handleSearch)
	b.bot.Handle("/generate", b.handleGenerate)
	b.bot.Handle("/models", b.handleListModels)
	b.bot.Handle("/list_models", b.handleListModels)
	b.bot.Handle("/current", b.handleCurrentModels)
	b.bot.Handle("/auth", b.handleAuth)
	b.bot.Handle("/setmodel", b.handleSetMain)
	b.bot.Handle("/set_model", b.handleSetModel)

	b.bot.Handle(tele.OnText, b.handleText)
	b.bot.Handle(tele.OnPhoto, b.handlePhoto)
	b.bot.Handle(tele.OnDocument, b.handleDocument)
}

func (b *Bot) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, requestTimeout)
}

// shouldRespond gates group chats: the bot only reacts when addressed by
// name, by handle or via a reply to one of its messages. Private chats
// always pass.
func (b *Bot) shouldRespond(c tele.Context) bool {
	if c.Chat().Type == tele.ChatPrivate {
		return true
	}
	msg := c.Message()
	if msg == nil {
		return false
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && msg.ReplyTo.Sender.ID == b.bot.Me.ID {
		return true
	}
	lowered := strings.ToLower(msg.Text + " " + msg.Caption)
	if strings.Contains(lowered, "@"+strings.ToLower(b.bot.Me.Username)) {
		return true
	}
	name := strings.ToLower(b.deps.Config.Bot.Name)
	return name != "" && strings.Contains(lowered, name)
}

func (b *Bot) handleText(c tele.Context) error {
	if !b.shouldRespond(c) {
		return nil
	}
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}

	_ = c.Notify(tele.Typing)

	if reply := b.modelQuestionReply(text); reply != "" {
		return b.send(c, reply)
	}

	ctx, cancel := b.requestContext()
	defer cancel()

	reply, handled := b.deps.Coord.HandleText(ctx, c.Chat().ID, c.Sender().ID, c.Message().ID, text)
	if !handled || reply == "" {
		return nil
	}
	return b.send(c, reply)
}

// modelQuestionReply intercepts "which model are you" questions with the
// actual selection instead of letting the model hallucinate an answer.
func (b *Bot) modelQuestionReply(text string) string {
	lowered := strings.ToLower(text)
	if !strings.Contains(lowered, "модел") && !strings.Contains(lowered, "model") {
		return ""
	}
	for _, kw := range []string{"какая", "какой", "which", "what"} {
		if strings.Contains(lowered, kw) {
			return fmt.Sprintf("Сейчас я работаю на модели %s, а картинки разглядываю через %s 🧠",
				b.deps.Selection.MainModel(), b.deps.Selection.VisionModel())
		}
	}
	return ""
}

func (b *Bot) handlePhoto(c tele.Context) error {
	if !b.shouldRespond(c) {
		return nil
	}
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}

	_ = c.Notify(tele.Typing)

	img, err := media.DownloadAndOptimize(b.bot, photo)
	if err != nil {
		L_error("telegram: photo download failed", "chat", c.Chat().ID, "error", err)
		return b.send(c, "Ой-ой! 😢 Слайм не может найти изображение. Может быть, попробуем другое? 🎨")
	}

	ctx, cancel := b.requestContext()
	defer cancel()

	reply := b.deps.Coord.HandleImage(ctx, c.Chat().ID, c.Sender().ID, c.Message().ID, img.Data, c.Message().Caption)
	return b.send(c, reply)
}

func (b *Bot) handleDocument(c tele.Context) error {
	if !b.shouldRespond(c) {
		return nil
	}
	doc := c.Message().Document
	if doc == nil {
		return nil
	}

	_ = c.Notify(tele.Typing)

	maxBytes := b.deps.Config.Files.MaxDocumentBytes
	content, err := media.DownloadFile(b.bot, &doc.File, maxBytes)
	if err != nil {
		L_error("telegram: document download failed", "chat", c.Chat().ID, "name", doc.FileName, "error", err)
		return b.send(c, "Не получилось скачать файл 😔 Попробуй еще раз.")
	}

	ctx, cancel := b.requestContext()
	defer cancel()

	reply := b.deps.Coord.HandleDocument(ctx, c.Chat().ID, doc.FileName, content, c.Message().Caption)
	return b.send(c, reply)
}

func (b *Bot) handleSearch(c tele.Context) error {
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Send("Пожалуйста, укажите поисковый запрос после команды /search")
	}

	_ = c.Notify(tele.Typing)

	ctx, cancel := b.requestContext()
	defer cancel()
	return b.send(c, b.deps.Coord.HandleSearch(ctx, query))
}

func (b *Bot) handleGenerate(c tele.Context) error {
	if !b.deps.Diffusion.Enabled() {
		return c.Send("Рисование сейчас выключено 😔")
	}
	description := strings.TrimSpace(c.Message().Payload)
	if description == "" {
		return c.Send("Напиши, что нарисовать: /generate кот в сапогах")
	}

	_ = c.Notify(tele.UploadingPhoto)

	ctx, cancel := b.requestContext()
	defer cancel()

	prompt, err := b.deps.Prompter.Prepare(ctx, description)
	if err != nil {
		L_error("telegram: prompt preparation failed", "error", err)
		return b.send(c, llm.FormatErrorForUser(err))
	}

	image, err := b.deps.Diffusion.Generate(ctx, prompt)
	if err != nil {
		L_error("telegram: image generation failed", "error", err)
		return b.send(c, llm.FormatErrorForUser(err))
	}

	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(image))}
	photo.Caption = truncate(description, 200)
	return c.Send(photo)
}

func (b *Bot) handleListModels(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	infos, err := b.deps.Gateway.ListModels(ctx)
	if err != nil {
		L_error("telegram: list models failed", "error", err)
		return b.send(c, llm.FormatErrorForUser(err))
	}
	if len(infos) == 0 {
		return c.Send("На сервере пока нет ни одной модели 🤷")
	}

	var sb strings.Builder
	sb.WriteString("Доступные модели:\n")
	for _, m := range infos {
		fmt.Fprintf(&sb, "• %s (%.1f GB)\n", m.Name, float64(m.Size)/(1<<30))
	}
	sb.WriteString("\nСменить: /set_model <роль> <модель> (нужен /auth)")
	return c.Send(sb.String())
}

func (b *Bot) handleCurrentModels(c tele.Context) error {
	return c.Send(fmt.Sprintf("Текущие модели:\n• основная: %s\n• зрение: %s",
		b.deps.Selection.MainModel(), b.deps.Selection.VisionModel()))
}

func (b *Bot) handleAuth(c tele.Context) error {
	password := strings.TrimSpace(c.Message().Payload)
	userID := c.Sender().ID

	// Don't leave the password sitting in the chat history.
	if c.Chat().Type == tele.ChatPrivate {
		defer func() { _ = b.bot.Delete(c.Message()) }()
	}

	err := b.deps.Admins.Authenticate(userID, password)
	switch {
	case err == nil:
		return c.Send("Добро пожаловать, админ! 🔑")
	case errors.Is(err, admin.ErrLockedOut):
		return c.Send("Слишком много неудачных попыток. Доступ заблокирован. 🚫")
	default:
		left := b.deps.Admins.RemainingAttempts(userID)
		return c.Send(fmt.Sprintf("Неверный пароль. Осталось попыток: %d", left))
	}
}

func (b *Bot) handleSetMain(c tele.Context) error {
	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Send("Укажи модель: /setmodel llama3")
	}
	return b.setModel(c, models.RoleMain, name)
}

func (b *Bot) handleSetModel(c tele.Context) error {
	fields := strings.Fields(c.Message().Payload)
	if len(fields) != 2 {
		return c.Send("Использование: /set_model <основная|зрение> <модель>")
	}
	role, err := models.ParseRole(fields[0])
	if err != nil {
		return c.Send("Не знаю такую роль. Есть: основная, зрение")
	}
	return b.setModel(c, role, fields[1])
}

func (b *Bot) setModel(c tele.Context, role models.Role, name string) error {
	if err := b.deps.Admins.RequireAdmin(c.Sender().ID); err != nil {
		return c.Send("Эта команда только для админов. Сначала /auth 🔒")
	}

	ctx, cancel := b.requestContext()
	defer cancel()

	if err := b.deps.Selection.Set(ctx, role, name); err != nil {
		L_warn("telegram: set model failed", "role", role, "model", name, "error", err)
		switch {
		case llm.IsValidation(err):
			return c.Send(fmt.Sprintf("Модели %q нет на сервере. Посмотри /models", name))
		case llm.IsNoCapability(err):
			return c.Send(fmt.Sprintf("Модель %q не умеет работать с изображениями 👀", name))
		default:
			return b.send(c, llm.FormatErrorForUser(err))
		}
	}
	return c.Send(fmt.Sprintf("Готово! Роль %q теперь использует %s ✅", role.RussianName(), name))
}

// send renders markdown to Telegram HTML and truncates to the API limit.
func (b *Bot) send(c tele.Context, text string) error {
	msg := FormatMessage(text)
	if len(msg) > maxMessageChars {
		msg = truncate(msg, maxMessageChars) + "..."
	}
	return c.Send(msg, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

// truncate cuts text to at most n bytes without splitting a rune.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
