package llm

import (
	"errors"
	"fmt"
)

// ErrUnavailable means the inference server could not be reached at all
// (connection refused, DNS failure, timeout).
type ErrUnavailable struct {
	URL string
	Err error
}

func (e ErrUnavailable) Error() string {
	return fmt.Sprintf("ollama unreachable at %s: %v", e.URL, e.Err)
}

func (e ErrUnavailable) Unwrap() error { return e.Err }

// ErrBackend means the server answered but with a non-success status or a
// payload we could not use.
type ErrBackend struct {
	Status int
	Detail string
}

func (e ErrBackend) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ollama returned status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("ollama bad response: %s", e.Detail)
}

// ErrNoCapability means the requested model lacks a required capability,
// currently only vision.
type ErrNoCapability struct {
	Model      string
	Capability string
}

func (e ErrNoCapability) Error() string {
	return fmt.Sprintf("model %s does not support %s", e.Model, e.Capability)
}

// ErrValidation means the caller passed input we refuse to send to the
// backend: empty prompt, empty image, missing model name.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsUnavailable reports whether err is (or wraps) an ErrUnavailable.
func IsUnavailable(err error) bool {
	var e ErrUnavailable
	return errors.As(err, &e)
}

// IsBackend reports whether err is (or wraps) an ErrBackend.
func IsBackend(err error) bool {
	var e ErrBackend
	return errors.As(err, &e)
}

// IsNoCapability reports whether err is (or wraps) an ErrNoCapability.
func IsNoCapability(err error) bool {
	var e ErrNoCapability
	return errors.As(err, &e)
}

// IsValidation reports whether err is (or wraps) an ErrValidation.
func IsValidation(err error) bool {
	var e ErrValidation
	return errors.As(err, &e)
}

// FormatErrorForUser maps a gateway error to reply text in the bot's voice.
// Raw error strings never reach the chat.
func FormatErrorForUser(err error) string {
	switch {
	case IsNoCapability(err):
		return "Эта модель не умеет работать с изображениями. Попросите администратора выбрать модель со зрением через /set_model. 🙈"
	case IsUnavailable(err):
		return "Ой-ой! 😢 Я не могу достучаться до своих мозгов (Ollama не отвечает). Попробуйте чуть позже!"
	case IsValidation(err):
		return "Хм, я не понял запрос. Попробуйте переформулировать! 🤔"
	default:
		return "Ой-ой! 😢 Что-то пошло не так. Давайте попробуем еще раз! 🌟"
	}
}
