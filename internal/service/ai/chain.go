package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// ChainInterpreter runs each turn through an eino chain: a chat template
// (system prompt, recent history, per-turn instruction) feeding a chat model.
type ChainInterpreter struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewChainInterpreter compiles the interpretation chain around chatModel.
func NewChainInterpreter(ctx context.Context, chatModel model.ChatModel, logger *zap.Logger) (*ChainInterpreter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runnable, err := compileChain(ctx, chatModel, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile interpreter chain: %w", err)
	}

	return &ChainInterpreter{
		chain:  runnable,
		logger: logger.With(zap.String("component", "ai.chain")),
	}, nil
}

// Interpret implements Interpreter.
func (i *ChainInterpreter) Interpret(ctx context.Context, req Request) (Interpretation, error) {
	input := map[string]any{
		"system":  interpretSystemPrompt,
		"history": buildHistoryMessages(req.History),
		"query":   buildUserPrompt(req),
	}

	msg, err := i.chain.Invoke(ctx, input)
	if err != nil {
		return Interpretation{}, fmt.Errorf("failed to run interpreter chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Interpretation{}, fmt.Errorf("%w: empty reply", ErrNotUnderstood)
	}

	out, err := parseInterpretation(msg.Content)
	if err != nil {
		i.logger.Debug("interpreter reply not usable", zap.String("session_id", req.SessionID), zap.Error(err))
		return Interpretation{}, err
	}
	i.logger.Debug("interpreted turn",
		zap.String("session_id", req.SessionID),
		zap.String("phase", string(req.Phase)),
		zap.Strings("fields", out.Fields.Keys()),
		zap.Bool("intent", out.Intent != ""))
	return out, nil
}

// ChainSummarizer writes the closing summary through an eino chain.
type ChainSummarizer struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewChainSummarizer compiles the summary chain around chatModel.
func NewChainSummarizer(ctx context.Context, chatModel model.ChatModel, logger *zap.Logger) (*ChainSummarizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runnable, err := compileChain(ctx, chatModel, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}
	return &ChainSummarizer{
		chain:  runnable,
		logger: logger.With(zap.String("component", "ai.summary")),
	}, nil
}

// Summarize implements Summarizer. Any model failure falls back to the
// template summary.
func (s *ChainSummarizer) Summarize(ctx context.Context, record intake.SavedRecord) string {
	body, err := intake.EncodeRecord(record)
	if err != nil {
		return TemplateSummary(record)
	}
	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system": summarySystemPrompt,
		"query":  "Summarise this analytics request:\n" + string(body),
	})
	if err != nil || msg == nil || strings.TrimSpace(msg.Content) == "" {
		s.logger.Warn("summary generation failed, using template", zap.String("session_id", record.Metadata.SessionID), zap.Error(err))
		return TemplateSummary(record)
	}
	return strings.TrimSpace(msg.Content)
}

func compileChain(ctx context.Context, chatModel model.ChatModel, withHistory bool) (compose.Runnable[map[string]any, *schema.Message], error) {
	messages := []schema.MessagesTemplate{schema.SystemMessage("{system}")}
	if withHistory {
		messages = append(messages, schema.MessagesPlaceholder("history", true))
	}
	messages = append(messages, schema.UserMessage("{query}"))

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(prompt.FromMessages(schema.FString, messages...))
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

func buildHistoryMessages(messages []intake.Message) []*schema.Message {
	recent := recentHistory(messages)
	if len(recent) == 0 {
		return nil
	}
	history := make([]*schema.Message, 0, len(recent))
	for _, msg := range recent {
		switch msg.Sender {
		case intake.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case intake.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
