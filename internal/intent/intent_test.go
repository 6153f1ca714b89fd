package intent

import "testing"

func testClassifier() *Classifier {
	return New(Replies{
		Creator:      "creator reply",
		Name:         "name reply",
		Greeting:     "greeting reply",
		Capabilities: "capabilities reply",
		RequestImage: "send a photo",
		RequestFile:  "send a document",
	}, Keywords{})
}

func TestClassifyPriorityOrder(t *testing.T) {
	c := testClassifier()
	cases := []struct {
		text  string
		want  Action
		reply string
	}{
		{"Кто тебя создал?", ActionCanned, "creator reply"},
		{"Как тебя зовут?", ActionCanned, "name reply"},
		{"Привет!", ActionCanned, "greeting reply"},
		{"Что ты умеешь?", ActionCanned, "capabilities reply"},
		{"Найди прогноз погоды", ActionSearch, ""},
		{"Посмотри на это фото", ActionRequestImage, "send a photo"},
		{"Прочитай документ", ActionRequestFile, "send a document"},
		{"Расскажи про космос", ActionAnswer, ""},
	}
	for _, tc := range cases {
		got := c.Classify(tc.text)
		if got.Action != tc.want {
			t.Errorf("Classify(%q).Action = %v, want %v", tc.text, got.Action, tc.want)
		}
		if tc.reply != "" && got.Reply != tc.reply {
			t.Errorf("Classify(%q).Reply = %q, want %q", tc.text, got.Reply, tc.reply)
		}
	}
}

func TestClassifyCreatorBeatsName(t *testing.T) {
	// "кто тебя создал" contains the name keyword "кто ты" as a prefix.
	got := testClassifier().Classify("а кто тебя создал вообще")
	if got.Reply != "creator reply" {
		t.Errorf("Reply = %q, want creator reply", got.Reply)
	}
}

func TestClassifyGreetingBeatsAnswer(t *testing.T) {
	got := testClassifier().Classify("привет, расскажи анекдот")
	if got.Action != ActionCanned {
		t.Errorf("Action = %v, want canned greeting", got.Action)
	}
}

func TestClassifySearchCarriesQuery(t *testing.T) {
	text := "найди рецепт борща"
	got := testClassifier().Classify(text)
	if got.Action != ActionSearch || got.Query != text {
		t.Errorf("got %+v", got)
	}
}

func TestClassifyEmptyIsFallback(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		got := testClassifier().Classify(text)
		if got.Action != ActionAnswer {
			t.Errorf("Classify(%q).Action = %v, want answer", text, got.Action)
		}
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	got := testClassifier().Classify("ПРИВЕТ")
	if got.Action != ActionCanned || got.Reply != "greeting reply" {
		t.Errorf("got %+v", got)
	}
}

func TestClassifyExtraKeywords(t *testing.T) {
	c := New(Replies{Creator: "creator reply"}, Keywords{Creator: []string{"who built you"}})
	got := c.Classify("so who built you?")
	if got.Action != ActionCanned || got.Reply != "creator reply" {
		t.Errorf("got %+v", got)
	}
}
