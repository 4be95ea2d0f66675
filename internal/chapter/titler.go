package chapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundscribe/soundscribe/pkg/provider/llm"
	"github.com/soundscribe/soundscribe/pkg/types"
)

const (
	// titleMinTextChars gates titling: chapters with less text than this get
	// the untitled placeholder without a completion call.
	titleMinTextChars = 50

	// titlePromptTextChars caps how much chapter text goes into the prompt.
	titlePromptTextChars = 1500

	// summaryPreviewChars is the stored chapter summary preview length.
	summaryPreviewChars = 200

	// titleTimeout bounds each title completion so a hung backend degrades
	// to a placeholder instead of stalling the worker.
	titleTimeout = 30 * time.Second

	// Placeholder titles, in order of how far titling got.
	titleTooShort   = "Untitled Segment"
	titleEmptyReply = "Chapter"
	titleFailed     = "New Chapter"
)

const titlePrompt = `Generate a very short, engaging title (3-6 words) for the following video segment.
Do not use quotes. Do not say "Here is a title". Just the title.

Segment: %s...

Title:`

// titleDrafts titles every draft through the text-generation collaborator,
// bounded by titleConcurrency. Title failures degrade to placeholders and
// never abort; the output always has one chapter per draft, in order.
func (c *Chapterizer) titleDrafts(ctx context.Context, drafts []draft, report Progress) []types.Chapter {
	chapters := make([]types.Chapter, len(drafts))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.titleConcurrency)
	for i, d := range drafts {
		g.Go(func() error {
			chapters[i] = types.Chapter{
				Start:   d.start,
				End:     d.end,
				Title:   c.generateTitle(gctx, d.text),
				Summary: truncate(d.text, summaryPreviewChars) + "...",
			}

			mu.Lock()
			percent := 88 + done*5/len(drafts)
			done++
			report(percent, fmt.Sprintf("Titled chapter %d/%d", done, len(drafts)))
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return chapters
}

// generateTitle asks the collaborator for a 3-6 word title. Gate, truncation,
// and placeholder behaviour stay fixed regardless of backend.
func (c *Chapterizer) generateTitle(ctx context.Context, text string) string {
	if len(text) < titleMinTextChars {
		return titleTooShort
	}
	if c.completer == nil {
		return titleFailed
	}

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf(titlePrompt, truncate(text, titlePromptTextChars)),
		}},
	})
	if err != nil {
		slog.Error("chapter title generation failed", "error", err)
		return titleFailed
	}

	title := strings.ReplaceAll(strings.TrimSpace(resp.Content), `"`, "")
	if title == "" {
		return titleEmptyReply
	}
	return title
}

// truncate cuts s to at most n runes without splitting a multi-byte sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
