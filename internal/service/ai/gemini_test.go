package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

func newTestGemini(t *testing.T, reply string) *GeminiInterpreter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": reply}},
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	g, err := newGeminiInterpreter(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	}, "", nil)
	if err != nil {
		t.Fatalf("newGeminiInterpreter returned error: %v", err)
	}
	return g
}

func TestGeminiInterpreter(t *testing.T) {
	g := newTestGemini(t, `{"understood": true, "intent": "weekly report", "fields": {}}`)

	out, err := g.Interpret(context.Background(), Request{
		Phase:     intake.PhaseClassifying,
		Utterance: "a weekly report please",
	})
	if err != nil {
		t.Fatalf("Interpret returned error: %v", err)
	}
	if out.Intent != "weekly report" {
		t.Fatalf("unexpected intent %q", out.Intent)
	}
	if g.model != DefaultGeminiModel {
		t.Fatalf("expected default model, got %q", g.model)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	if _, err := NewGeminiInterpreter(context.Background(), "", "", nil); err == nil {
		t.Fatal("expected error without api key")
	}
}
