package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soundscribe/soundscribe/pkg/provider/llm"
	llmmock "github.com/soundscribe/soundscribe/pkg/provider/llm/mock"
)

func TestSummarise(t *testing.T) {
	longText := strings.Repeat("The quarterly results exceeded projections. ", 5)

	t.Run("short text returns fixed message without provider call", func(t *testing.T) {
		mockLLM := &llmmock.Provider{}
		s := NewLLMSummariser(mockLLM)

		got, err := s.Summarise(context.Background(), "   brief   ")
		if err != nil {
			t.Fatalf("Summarise: %v", err)
		}
		if got != TooShortMessage {
			t.Errorf("summary = %q, want %q", got, TooShortMessage)
		}
		if len(mockLLM.CompleteCalls) != 0 {
			t.Errorf("provider called for short text")
		}
	})

	t.Run("happy path", func(t *testing.T) {
		mockLLM := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "  Results beat projections.  "},
		}
		s := NewLLMSummariser(mockLLM)

		got, err := s.Summarise(context.Background(), longText)
		if err != nil {
			t.Fatalf("Summarise: %v", err)
		}
		if got != "Results beat projections." {
			t.Errorf("summary = %q, want trimmed completion", got)
		}

		if len(mockLLM.CompleteCalls) != 1 {
			t.Fatalf("provider calls = %d, want 1", len(mockLLM.CompleteCalls))
		}
		req := mockLLM.CompleteCalls[0].Req
		if !strings.Contains(req.SystemPrompt, "expert summarizer") {
			t.Errorf("system prompt = %q", req.SystemPrompt)
		}
		if !strings.Contains(req.Messages[0].Content, "quarterly results") {
			t.Errorf("user message does not contain transcript")
		}
	})

	t.Run("provider error propagates", func(t *testing.T) {
		mockLLM := &llmmock.Provider{CompleteErr: errors.New("connection refused")}
		s := NewLLMSummariser(mockLLM)

		if _, err := s.Summarise(context.Background(), longText); err == nil {
			t.Fatal("expected error from failed provider")
		}
	})

	t.Run("empty completion is an error", func(t *testing.T) {
		mockLLM := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: " \n "}}
		s := NewLLMSummariser(mockLLM)

		if _, err := s.Summarise(context.Background(), longText); err == nil {
			t.Fatal("expected error for empty completion")
		}
	})

	t.Run("completion carries a deadline", func(t *testing.T) {
		var remaining time.Duration
		deadlineSet := false
		mockLLM := &llmmock.Provider{
			CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
				if dl, ok := ctx.Deadline(); ok {
					deadlineSet = true
					remaining = time.Until(dl)
				}
				return &llm.CompletionResponse{Content: "A summary."}, nil
			},
		}
		s := NewLLMSummariser(mockLLM)

		if _, err := s.Summarise(context.Background(), longText); err != nil {
			t.Fatalf("Summarise: %v", err)
		}
		if !deadlineSet {
			t.Fatal("completion context has no deadline")
		}
		if remaining > completionTimeout {
			t.Errorf("deadline %v away, want at most %v", remaining, completionTimeout)
		}
	})
}
