package sd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slaimbot/goslaim/internal/llm"
)

func newFakeSD(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{URL: server.URL, Timeout: 5 * time.Second})
}

func TestGenerateDecodesFirstImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	client := newFakeSD(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/txt2img" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req txt2imgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prompt != "a cat" || req.Steps != DefaultSteps {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(txt2imgResponse{
			Images: []string{base64.StdEncoding.EncodeToString(png)},
		})
	})

	got, err := client.Generate(context.Background(), "a cat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(got) != string(png) {
		t.Errorf("image bytes = %v", got)
	}
}

func TestGenerateEmptyPromptNeverHitsServer(t *testing.T) {
	client := newFakeSD(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server was called")
	})
	if _, err := client.Generate(context.Background(), "   "); !llm.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestGenerateDisabledClient(t *testing.T) {
	client := New(Config{})
	if client.Enabled() {
		t.Error("client with no URL reports enabled")
	}
	if _, err := client.Generate(context.Background(), "a cat"); !llm.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	client := newFakeSD(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	})
	if _, err := client.Generate(context.Background(), "a cat"); !llm.IsBackend(err) {
		t.Errorf("err = %v, want backend error", err)
	}
}

func TestGenerateEmptyImageListIsBackendError(t *testing.T) {
	client := newFakeSD(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(txt2imgResponse{})
	})
	if _, err := client.Generate(context.Background(), "a cat"); !llm.IsBackend(err) {
		t.Errorf("err = %v, want backend error", err)
	}
}

func TestGenerateUnreachableServer(t *testing.T) {
	client := New(Config{URL: "http://127.0.0.1:1", Timeout: time.Second})
	if _, err := client.Generate(context.Background(), "a cat"); !llm.IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable error", err)
	}
}
