package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiInterpreter interprets turns with the Gemini API and can also write
// the closing summary.
type GeminiInterpreter struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiInterpreter creates a Gemini-backed interpreter.
func NewGeminiInterpreter(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiInterpreter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	return newGeminiInterpreter(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, logger)
}

func newGeminiInterpreter(ctx context.Context, cfg *genai.ClientConfig, model string, logger *zap.Logger) (*GeminiInterpreter, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiInterpreter{
		client: client,
		model:  model,
		logger: logger.With(zap.String("component", "ai.gemini"), zap.String("model", model)),
	}, nil
}

// Interpret implements Interpreter.
func (g *GeminiInterpreter) Interpret(ctx context.Context, req Request) (Interpretation, error) {
	contents := make([]*genai.Content, 0, historyLimit+1)
	for _, msg := range recentHistory(req.History) {
		switch msg.Sender {
		case intake.SenderUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case intake.SenderAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	contents = append(contents, genai.NewContentFromText(buildUserPrompt(req), genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(interpretSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.25),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return Interpretation{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Interpretation{}, fmt.Errorf("%w: empty reply", ErrNotUnderstood)
	}
	out, err := parseInterpretation(text)
	if err != nil {
		g.logger.Debug("interpreter reply not usable", zap.String("session_id", req.SessionID), zap.Error(err))
		return Interpretation{}, err
	}
	return out, nil
}

// Summarize implements Summarizer.
func (g *GeminiInterpreter) Summarize(ctx context.Context, record intake.SavedRecord) string {
	body, err := intake.EncodeRecord(record)
	if err != nil {
		return TemplateSummary(record)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text("Summarise this analytics request:\n"+string(body)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(summarySystemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.25),
		})
	if err != nil {
		g.logger.Warn("summary generation failed, using template", zap.String("session_id", record.Metadata.SessionID), zap.Error(err))
		return TemplateSummary(record)
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		return text
	}
	return TemplateSummary(record)
}
