package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Persona bundles the bot's voice: the system prompt, canned replies for
// questions the classifier answers without the model, and the keyword sets
// the classifier matches on. A TOML file can override any field.
type Persona struct {
	SystemPrompt string `toml:"system_prompt"`

	Replies  PersonaReplies  `toml:"replies"`
	Keywords PersonaKeywords `toml:"keywords"`
}

type PersonaReplies struct {
	Creator      string `toml:"creator"`
	Name         string `toml:"name"`
	Greeting     string `toml:"greeting"`
	Capabilities string `toml:"capabilities"`
	Welcome      string `toml:"welcome"`
	Help         string `toml:"help"`
	About        string `toml:"about"`
}

// PersonaKeywords extends the built-in classifier keyword sets. Entries are
// added to the defaults, never replacing them.
type PersonaKeywords struct {
	Creator      []string `toml:"creator"`
	Name         []string `toml:"name"`
	Greeting     []string `toml:"greeting"`
	Capabilities []string `toml:"capabilities"`
	Search       []string `toml:"search"`
	Image        []string `toml:"image"`
	Document     []string `toml:"document"`
}

// DefaultPersona returns the built-in Слайм persona.
func DefaultPersona() *Persona {
	return &Persona{
		SystemPrompt: "Ты - дружелюбный бот по имени Слайм. Тебя создал Богдан. " +
			"Отвечай кратко, дружелюбно и по делу, на языке собеседника. " +
			"Не упоминай, что ты языковая модель.",
		Replies: PersonaReplies{
			Creator:      "Меня создал Богдан! 🛠️",
			Name:         "Меня зовут Слайм! 😊",
			Greeting:     "Привет! 👋 Чем могу помочь?",
			Capabilities: "Я умею отвечать на вопросы, описывать картинки, читать документы, искать в интернете (/search) и рисовать (/generate)! 🎨",
			Welcome:      "Привет! Я Слайм 🤖 Напиши мне что-нибудь, пришли картинку или документ. Список команд: /help",
			Help: "Вот что я умею:\n" +
				"/search <запрос> - поиск в интернете\n" +
				"/generate <описание> - нарисовать картинку\n" +
				"/models - показать доступные модели\n" +
				"/current - показать выбранные модели\n" +
				"/set_model <роль> <модель> - сменить модель (нужен /auth)\n" +
				"/auth <пароль> - вход для администратора\n" +
				"/reset - забыть нашу переписку\n" +
				"/about - обо мне",
			About: "Я Слайм - локальный бот на Ollama. Живу у Богдана на сервере и ничего никуда не отправляю. 🏠",
		},
	}
}

// LoadPersona reads a TOML overlay over the default persona. A missing file
// is not an error, the defaults apply.
func LoadPersona(path string) (*Persona, error) {
	p := DefaultPersona()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read persona %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse persona %s: %w", path, err)
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = DefaultPersona().SystemPrompt
	}
	return p, nil
}
