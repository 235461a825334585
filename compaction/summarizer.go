package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/model"
)

const defaultInstructions = "You condense conversation history. Summarize the " +
	"following transcript into a compact briefing that preserves user goals, " +
	"decisions, tool results, file and artifact names, and open tasks. Answer " +
	"with the summary only."

// ModelSummarizer produces compaction summaries through a model.Model.
type ModelSummarizer struct {
	mdl          model.Model
	instructions string
}

// ModelSummarizerOption customizes a ModelSummarizer.
type ModelSummarizerOption func(*ModelSummarizer)

// WithInstructions replaces the default summarization system prompt.
func WithInstructions(instructions string) ModelSummarizerOption {
	return func(s *ModelSummarizer) { s.instructions = instructions }
}

// NewModelSummarizer creates a Summarizer backed by the given model.
func NewModelSummarizer(mdl model.Model, optFns ...ModelSummarizerOption) *ModelSummarizer {
	s := &ModelSummarizer{
		mdl:          mdl,
		instructions: defaultInstructions,
	}

	for _, fn := range optFns {
		fn(s)
	}

	return s
}

// Summarize renders the events as a transcript and asks the model for a
// summary. An empty transcript yields a nil content without calling the model.
func (s *ModelSummarizer) Summarize(ctx context.Context, events []core.Event) (*core.Content, error) {
	transcript := renderTranscript(events)
	if transcript == "" {
		return nil, nil
	}

	respCh, errCh := s.mdl.Generate(ctx, model.Request{
		Instructions: s.instructions,
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: transcript}}},
		},
	})

	var summary strings.Builder
	for resp := range respCh {
		if resp.Partial {
			continue
		}
		summary.WriteString(resp.Content.Text())
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	text := strings.TrimSpace(summary.String())
	if text == "" {
		return nil, nil
	}

	return &core.Content{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: text}},
	}, nil
}

// renderTranscript flattens events into "author: line" pairs. Function calls
// and responses are rendered as short markers so the summary can mention tool
// activity without raw payload noise.
func renderTranscript(events []core.Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}

		var lines []string
		for _, p := range ev.Content.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					lines = append(lines, part.Text)
				}
			case core.FunctionCallPart:
				lines = append(lines, fmt.Sprintf("[calls %s]", part.FunctionCall.Name))
			case core.FunctionResponsePart:
				fr := part.FunctionResponse
				if fr.Error != "" {
					lines = append(lines, fmt.Sprintf("[%s failed: %s]", fr.Name, fr.Error))
				} else {
					lines = append(lines, fmt.Sprintf("[%s returned: %v]", fr.Name, fr.Response))
				}
			}
		}
		if len(lines) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s: %s\n", ev.Author, strings.Join(lines, " "))
	}
	return strings.TrimSpace(b.String())
}
