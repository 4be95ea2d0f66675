package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/soundscribe/soundscribe/internal/transcript/llmcorrect"
	"github.com/soundscribe/soundscribe/internal/transcript/phonetic"
	"github.com/soundscribe/soundscribe/pkg/provider/llm"
	llmmock "github.com/soundscribe/soundscribe/pkg/provider/llm/mock"
	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

func TestCorrect_PhoneticFixesSegmentText(t *testing.T) {
	c := NewCorrector(phonetic.New())
	segs := []types.Segment{{
		Interval: timeline.Interval{Start: 0, End: 3},
		Text:     "We deployed jenkens yesterday.",
	}}

	out, corrections, err := c.Correct(context.Background(), segs, []string{"Jenkins"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Text != "We deployed Jenkins yesterday." {
		t.Errorf("text = %q", out[0].Text)
	}
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	if corrections[0].Original != "jenkens" || corrections[0].Corrected != "Jenkins" {
		t.Errorf("correction = %+v", corrections[0])
	}
	if corrections[0].Method != "phonetic" {
		t.Errorf("method = %q, want phonetic", corrections[0].Method)
	}
	if segs[0].Text != "We deployed jenkens yesterday." {
		t.Error("input segment was mutated")
	}
}

func TestCorrect_WordSubstitutionPreservesTiming(t *testing.T) {
	c := NewCorrector(phonetic.New())
	segs := []types.Segment{{
		Interval: timeline.Interval{Start: 0, End: 3},
		Text:     "We use postgress",
		Words: []types.Word{
			{Interval: timeline.Interval{Start: 0, End: 1}, Text: " We", Confidence: 1.0},
			{Interval: timeline.Interval{Start: 1, End: 2}, Text: " use", Confidence: 1.0},
			{Interval: timeline.Interval{Start: 2, End: 3}, Text: " postgress", Confidence: 1.0},
		},
	}}

	out, corrections, err := c.Correct(context.Background(), segs, []string{"Postgres"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	if got := out[0].Words[2].Text; got != " Postgres" {
		t.Errorf("word text = %q, want \" Postgres\"", got)
	}
	if out[0].Words[2].Interval.Start != 2 || out[0].Words[2].Interval.End != 3 {
		t.Errorf("word timing changed: %+v", out[0].Words[2].Interval)
	}
	if out[0].Text != "We use Postgres" {
		t.Errorf("segment text = %q", out[0].Text)
	}
	if segs[0].Words[2].Text != " postgress" {
		t.Error("input word was mutated")
	}
}

func TestCorrect_MultiWordTermConsumesWindow(t *testing.T) {
	c := NewCorrector(phonetic.New())
	segs := []types.Segment{{
		Text: "please open a merj request now",
	}}

	out, corrections, err := c.Correct(context.Background(), segs, []string{"merge request"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Text != "please open a merge request now" {
		t.Errorf("text = %q", out[0].Text)
	}
	if len(corrections) != 1 || corrections[0].Original != "merj request" {
		t.Fatalf("corrections = %+v", corrections)
	}
}

func TestCorrect_LLMReviewsSuspects(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrections": [{"original": "kooberneties", "corrected": "Kubernetes", "confidence": 0.9}]}`,
		},
	}
	c := NewCorrector(nil, WithLLMCorrector(llmcorrect.New(provider)))
	segs := []types.Segment{{
		Text: "the kooberneties cluster",
		Words: []types.Word{
			{Text: " the", Confidence: 1.0},
			{Text: " kooberneties", Confidence: 0.3},
			{Text: " cluster", Confidence: 1.0},
		},
	}}

	out, corrections, err := c.Correct(context.Background(), segs, []string{"Kubernetes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Words[1].Text != " Kubernetes" {
		t.Errorf("word text = %q", out[0].Words[1].Text)
	}
	if out[0].Text != "the Kubernetes cluster" {
		t.Errorf("segment text = %q", out[0].Text)
	}
	if len(corrections) != 1 || corrections[0].Method != "llm" {
		t.Fatalf("corrections = %+v", corrections)
	}
	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.CompleteCalls))
	}
	if msg := provider.CompleteCalls[0].Req.Messages[0].Content; !strings.Contains(msg, "kooberneties") {
		t.Errorf("suspect missing from user message: %q", msg)
	}
}

func TestCorrect_LLMSkippedWhenAllWordsConfident(t *testing.T) {
	provider := &llmmock.Provider{}
	c := NewCorrector(nil, WithLLMCorrector(llmcorrect.New(provider)))
	segs := []types.Segment{{
		Text: "everything is fine",
		Words: []types.Word{
			{Text: " everything", Confidence: 0.99},
			{Text: " is", Confidence: 0.97},
			{Text: " fine", Confidence: 0.98},
		},
	}}

	out, corrections, err := c.Correct(context.Background(), segs, []string{"Kubernetes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.CompleteCalls) != 0 {
		t.Fatalf("provider called %d times, want 0", len(provider.CompleteCalls))
	}
	if out[0].Text != "everything is fine" || len(corrections) != 0 {
		t.Errorf("out = %q corrections = %+v", out[0].Text, corrections)
	}
}

func TestCorrect_LLMErrorKeepsPhoneticResult(t *testing.T) {
	wantErr := errors.New("backend down")
	provider := &llmmock.Provider{CompleteErr: wantErr}
	c := NewCorrector(phonetic.New(), WithLLMCorrector(llmcorrect.New(provider)))
	// No word detail, so the LLM stage always runs and fails.
	segs := []types.Segment{{Text: "jenkens said hello"}}

	out, corrections, err := c.Correct(context.Background(), segs, []string{"Jenkins"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
	if out[0].Text != "Jenkins said hello" {
		t.Errorf("phonetic result lost on LLM failure: %q", out[0].Text)
	}
	if len(corrections) != 1 || corrections[0].Method != "phonetic" {
		t.Errorf("corrections = %+v", corrections)
	}
}

func TestCorrect_NoTermsIsNoop(t *testing.T) {
	c := NewCorrector(phonetic.New())
	segs := []types.Segment{{Text: "nothing to do"}}

	out, corrections, err := c.Correct(context.Background(), segs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %+v, want none", corrections)
	}
	if out[0].Text != "nothing to do" {
		t.Errorf("text = %q", out[0].Text)
	}
}
