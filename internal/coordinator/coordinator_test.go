package coordinator

import (
	"context"
	"testing"

	"github.com/slaimbot/goslaim/internal/agents"
	"github.com/slaimbot/goslaim/internal/intent"
	"github.com/slaimbot/goslaim/internal/memory"
)

type scriptedGateway struct {
	reply      string
	imageReply string
	panicOnImg bool
}

func (g *scriptedGateway) Generate(_ context.Context, _, _ string) (string, error) {
	return g.reply, nil
}

func (g *scriptedGateway) GenerateWithImage(_ context.Context, _, _ string, _ []byte) (string, error) {
	if g.panicOnImg {
		panic("injected failure")
	}
	return g.imageReply, nil
}

type fixedModels struct{}

func (fixedModels) MainModel() string   { return "gemma3:12b" }
func (fixedModels) VisionModel() string { return "llava" }

func newTestCoordinator(gw *scriptedGateway) *Coordinator {
	mem := memory.New(0, 0)
	think := agents.NewThink(gw, fixedModels{}, mem, "sys")
	classifier := intent.New(intent.Replies{
		Greeting:     "привет-ответ",
		RequestImage: "пришли фото",
	}, intent.Keywords{})
	return New(
		classifier,
		think,
		agents.NewImage(gw, fixedModels{}, mem),
		agents.NewDocument(think, 1<<20),
		agents.NewWebSearch(think, "https://example.invalid/html/", "UA", 5),
		agents.NewWebBrowse(think, "UA"),
	)
}

func TestHandleTextCannedSkipsModel(t *testing.T) {
	c := newTestCoordinator(&scriptedGateway{reply: "model answer"})
	reply, handled := c.HandleText(context.Background(), 1, 2, 3, "привет")
	if !handled || reply != "привет-ответ" {
		t.Errorf("reply = %q handled = %v", reply, handled)
	}
}

func TestHandleTextFallsThroughToModel(t *testing.T) {
	c := newTestCoordinator(&scriptedGateway{reply: "ответ модели"})
	reply, handled := c.HandleText(context.Background(), 1, 2, 3, "расскажи про горы")
	if !handled || reply != "ответ модели" {
		t.Errorf("reply = %q handled = %v", reply, handled)
	}
}

func TestHandleTextSuppressedWhilePending(t *testing.T) {
	c := newTestCoordinator(&scriptedGateway{})
	c.setPending(42, 7)

	if _, handled := c.HandleText(context.Background(), 1, 7, 42, "подпись"); handled {
		t.Error("text for pending update was not suppressed")
	}
	// A different message id is unrelated and must be handled.
	if _, handled := c.HandleText(context.Background(), 1, 7, 43, "другое"); !handled {
		t.Error("unrelated message suppressed")
	}
}

func TestHandleImageClearsMarker(t *testing.T) {
	c := newTestCoordinator(&scriptedGateway{imageReply: "на фото кот"})
	reply := c.HandleImage(context.Background(), 1, 7, 42, []byte{1}, "")
	if reply != "на фото кот" {
		t.Errorf("reply = %q", reply)
	}
	if c.ImagePending(42, 7) {
		t.Error("marker not cleared after completion")
	}
}

func TestHandleImageClearsMarkerOnPanic(t *testing.T) {
	c := newTestCoordinator(&scriptedGateway{panicOnImg: true})
	reply := c.HandleImage(context.Background(), 1, 7, 42, []byte{1}, "")
	if reply != genericFallback {
		t.Errorf("reply = %q, want generic fallback", reply)
	}
	if c.ImagePending(42, 7) {
		t.Error("marker survived a panic, future text would be suppressed forever")
	}
}

func TestHandleImageCombinesCaption(t *testing.T) {
	gw := &scriptedGateway{imageReply: "на фото закат", reply: "красивый закат, да!"}
	c := newTestCoordinator(gw)
	reply := c.HandleImage(context.Background(), 1, 7, 42, []byte{1}, "нравится?")
	if reply != "красивый закат, да!" {
		t.Errorf("reply = %q", reply)
	}
}

func TestLooksLikeURL(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"https://example.com/page", true},
		{"http://example.com", true},
		{"открой https://example.com", false},
		{"просто текст", false},
	}
	for _, tc := range cases {
		if got := looksLikeURL(tc.text); got != tc.want {
			t.Errorf("looksLikeURL(%q) = %v", tc.text, got)
		}
	}
}

func TestStripSearchKeywords(t *testing.T) {
	if got := stripSearchKeywords("найди прогноз погоды"); got != "прогноз погоды" {
		t.Errorf("got %q", got)
	}
	if got := stripSearchKeywords("прогноз погоды"); got != "прогноз погоды" {
		t.Errorf("got %q", got)
	}
}

func TestHandleTextEmptyIsHandled(t *testing.T) {
	c := newTestCoordinator(&scriptedGateway{reply: "ответ"})
	reply, handled := c.HandleText(context.Background(), 1, 2, 3, "")
	if !handled || reply == "" {
		t.Errorf("reply = %q handled = %v", reply, handled)
	}
}
