package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// fakeChatModel replies with a fixed message and records what it was sent.
type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestChainInterpreterSendsHistoryAndParsesReply(t *testing.T) {
	fake := &fakeChatModel{reply: `{"understood": true, "intent": "", "fields": {"name": "Ada Lovelace"}}`}
	interp, err := NewChainInterpreter(context.Background(), fake, nil)
	if err != nil {
		t.Fatalf("NewChainInterpreter returned error: %v", err)
	}

	out, err := interp.Interpret(context.Background(), Request{
		SessionID: "s1",
		Phase:     intake.PhaseCollectingBasicInfo,
		Utterance: "I'm Ada Lovelace",
		History: []intake.Message{
			{Sender: intake.SenderAssistant, Content: "What is your full name?"},
		},
	})
	if err != nil {
		t.Fatalf("Interpret returned error: %v", err)
	}
	if out.Fields.Text("name") != "Ada Lovelace" {
		t.Fatalf("unexpected fields %v", out.Fields)
	}

	if len(fake.input) != 3 {
		t.Fatalf("expected system, history and user messages, got %d", len(fake.input))
	}
	if fake.input[0].Role != schema.System || fake.input[0].Content != interpretSystemPrompt {
		t.Fatalf("unexpected system message %+v", fake.input[0])
	}
	if fake.input[1].Role != schema.Assistant {
		t.Fatalf("expected assistant history message, got %s", fake.input[1].Role)
	}
	if !strings.Contains(fake.input[2].Content, "User message:\nI'm Ada Lovelace") {
		t.Fatalf("unexpected user prompt %q", fake.input[2].Content)
	}
}

func TestChainInterpreterErrors(t *testing.T) {
	transport := errors.New("connection reset")
	interp, err := NewChainInterpreter(context.Background(), &fakeChatModel{err: transport}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = interp.Interpret(context.Background(), Request{Utterance: "hi"})
	if err == nil || errors.Is(err, ErrNotUnderstood) {
		t.Fatalf("transport failure must not read as not understood: %v", err)
	}

	interp, err = NewChainInterpreter(context.Background(), &fakeChatModel{reply: "no idea"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := interp.Interpret(context.Background(), Request{Utterance: "hi"}); !errors.Is(err, ErrNotUnderstood) {
		t.Fatalf("expected ErrNotUnderstood, got %v", err)
	}

	if _, err := NewChainInterpreter(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil model")
	}
}

func TestChainSummarizerFallsBackToTemplate(t *testing.T) {
	record := intake.SavedRecord{
		BasicInfo:    intake.BasicInfo{Name: "Ada", Role: "Analyst", Department: "Finance", Timeline: "Friday"},
		RequestType:  intake.Update,
		Requirements: intake.OrderedFields{Keys: []string{"timeline"}, Values: intake.Fields{"timeline": "Friday"}},
	}

	ok, err := NewChainSummarizer(context.Background(), &fakeChatModel{reply: "  A short summary.  "}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := ok.Summarize(context.Background(), record); got != "A short summary." {
		t.Fatalf("unexpected summary %q", got)
	}

	failing, err := NewChainSummarizer(context.Background(), &fakeChatModel{err: errors.New("quota")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := failing.Summarize(context.Background(), record); got != TemplateSummary(record) {
		t.Fatalf("expected template fallback, got %q", got)
	}
}
