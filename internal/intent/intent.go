// Package intent classifies raw message text into an action category.
//
// Classification is a single pass over an ordered rule table. The first
// matching rule wins; the ordering is policy. Canned replies must match
// before the free-form fallback so that a greeting never costs a model
// round-trip.
package intent

import "strings"

// Action is the category a message classifies into.
type Action int

const (
	// ActionCanned replies with a fixed persona message, no model call.
	ActionCanned Action = iota
	// ActionSearch runs a web search with the extracted query.
	ActionSearch
	// ActionRequestImage asks the user to send a photo.
	ActionRequestImage
	// ActionRequestFile asks the user to send a document.
	ActionRequestFile
	// ActionAnswer generates a free-form model answer.
	ActionAnswer
)

func (a Action) String() string {
	switch a {
	case ActionCanned:
		return "canned"
	case ActionSearch:
		return "search"
	case ActionRequestImage:
		return "request_image"
	case ActionRequestFile:
		return "request_file"
	case ActionAnswer:
		return "answer"
	}
	return "unknown"
}

// Result carries the classified action and its payload. Reply is set for
// canned actions, Query for search.
type Result struct {
	Action Action
	Reply  string
	Query  string
}

// Replies are the canned texts the classifier can answer with directly.
type Replies struct {
	Creator      string
	Name         string
	Greeting     string
	Capabilities string
	RequestImage string
	RequestFile  string
}

// Keywords extend the built-in keyword sets per category.
type Keywords struct {
	Creator      []string
	Name         []string
	Greeting     []string
	Capabilities []string
	Search       []string
	Image        []string
	Document     []string
}

type rule struct {
	keywords []string
	make     func(text string) Result
}

// Classifier matches lower-cased message text against an ordered rule
// table. Safe for concurrent use after construction.
type Classifier struct {
	rules []rule
}

var (
	creatorKeywords = []string{
		"кто тебя создал", "кто тебя сделал", "кто твой создатель",
		"who made you", "who created you",
	}
	nameKeywords = []string{
		"как тебя зовут", "твое имя", "твоё имя", "кто ты",
		"what is your name", "what's your name",
	}
	greetingKeywords = []string{
		"привет", "здравствуй", "добрый день", "добрый вечер",
		"доброе утро", "hello", "hi there",
	}
	capabilityKeywords = []string{
		"что ты умеешь", "что умеешь", "помощь", "твои возможности",
		"what can you do", "help",
	}
	searchKeywords = []string{
		"найди", "поиск", "поищи", "ищи", "search",
	}
	imageKeywords = []string{
		"фото", "картинк", "изображени", "photo", "image",
	}
	documentKeywords = []string{
		"документ", "файл", "doc", "file",
	}
)

// New builds a classifier with the given canned replies and extra keywords.
func New(r Replies, extra Keywords) *Classifier {
	canned := func(reply string) func(string) Result {
		return func(string) Result {
			return Result{Action: ActionCanned, Reply: reply}
		}
	}
	return &Classifier{rules: []rule{
		{append(creatorKeywords, extra.Creator...), canned(r.Creator)},
		{append(nameKeywords, extra.Name...), canned(r.Name)},
		{append(greetingKeywords, extra.Greeting...), canned(r.Greeting)},
		{append(capabilityKeywords, extra.Capabilities...), canned(r.Capabilities)},
		{append(searchKeywords, extra.Search...), func(text string) Result {
			return Result{Action: ActionSearch, Query: text}
		}},
		{append(imageKeywords, extra.Image...), func(string) Result {
			return Result{Action: ActionRequestImage, Reply: r.RequestImage}
		}},
		{append(documentKeywords, extra.Document...), func(string) Result {
			return Result{Action: ActionRequestFile, Reply: r.RequestFile}
		}},
	}}
}

// Classify returns exactly one result for any input. Empty or unmatched
// text falls through to the free-form answer action.
func (c *Classifier) Classify(text string) Result {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Result{Action: ActionAnswer}
	}
	for _, rl := range c.rules {
		if containsAny(lowered, rl.keywords) {
			return rl.make(text)
		}
	}
	return Result{Action: ActionAnswer}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
