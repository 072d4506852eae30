package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// HistoryConfig tunes the rolling conversation window (spec §4.3).
type HistoryConfig struct {
	// MaxMessages is the hard cap on kept messages, excluding the system
	// prompt. Default 50.
	MaxMessages int
	// SummaryThreshold triggers maybe_compress once exceeded. Default 40.
	SummaryThreshold int
	// KeepRecentTurns is how many of the most recent turns survive
	// compression uncompressed. Default 5.
	KeepRecentTurns int
}

// DefaultHistoryConfig returns the spec's stated defaults.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{MaxMessages: 50, SummaryThreshold: 40, KeepRecentTurns: 5}
}

func (c HistoryConfig) normalized() HistoryConfig {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 50
	}
	if c.SummaryThreshold <= 0 {
		c.SummaryThreshold = 40
	}
	if c.KeepRecentTurns <= 0 {
		c.KeepRecentTurns = 5
	}
	return c
}

// Summarizer produces a natural-language summary of a message segment.
// Implemented against an LLMProvider in production; fakeable in tests,
// mirroring the teacher's SummaryProvider seam in context/summarize.go.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.Message) (string, error)
}

// LLMSummarizer adapts an LLMProvider to Summarizer using a fixed
// summarization prompt, the "LLM port with a fixed summarization prompt"
// called for by spec §4.3.
type LLMSummarizer struct {
	Provider LLMProvider
	Model    string
}

// Summarize renders messages into a transcript and asks the provider for a
// concise summary.
func (s LLMSummarizer) Summarize(ctx context.Context, messages []models.Message) (string, error) {
	transcript := renderTranscript(messages)
	req := &CompletionRequest{
		Model: s.Model,
		System: "Summarize the following conversation segment concisely, preserving " +
			"key decisions, tool outcomes, and open threads. Respond with prose only, no preamble.",
		Messages: []CompletionMessage{{Role: models.RoleUser, Content: transcript}},
	}
	completion, err := s.Provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

func renderTranscript(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]: %s", m.Role, m.Content)
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, "\n  (called tool %s)", tc.Name)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// History is the rolling-window conversation manager (spec §4.3): a
// never-evicted system prompt followed by a bounded message window, with
// opportunistic LLM-driven compression of the oldest segment.
type History struct {
	mu         sync.Mutex
	system     models.Message
	messages   []models.Message
	cfg        HistoryConfig
	summarizer Summarizer
}

// NewHistory constructs a History with systemPrompt as the permanent first
// message.
func NewHistory(systemPrompt string, cfg HistoryConfig, summarizer Summarizer) *History {
	return &History{
		system: models.Message{
			Role:      models.RoleSystem,
			Content:   systemPrompt,
			CreatedAt: time.Now(),
		},
		cfg:        cfg.normalized(),
		summarizer: summarizer,
	}
}

// Append adds one message to the window, trimming from the oldest non-system
// entries if MaxMessages is exceeded.
func (h *History) Append(msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	h.messages = append(h.messages, msg)
	if over := len(h.messages) - h.cfg.MaxMessages; over > 0 {
		h.messages = h.messages[over:]
	}
}

// Snapshot returns the system prompt followed by the last n logical turns.
// n = -1 returns the entire window.
func (h *History) Snapshot(n int) []models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := groupIntoTurns(h.messages)
	if n >= 0 && n < len(turns) {
		turns = turns[len(turns)-n:]
	}

	out := make([]models.Message, 0, 1+len(h.messages))
	out = append(out, h.system)
	for _, turn := range turns {
		out = append(out, turn...)
	}
	return out
}

// MaybeCompress summarizes the oldest compressible segment when the window
// exceeds SummaryThreshold. Returns whether compression ran. A summarization
// failure is never fatal: the history falls back to tail retention and the
// error is returned for the caller to surface as a recoverable StateUpdate
// (spec §4.3 "this failure is reported as a StateUpdate event but never
// aborts execution").
func (h *History) MaybeCompress(ctx context.Context) (compressed bool, fallback bool, err error) {
	h.mu.Lock()
	if len(h.messages) <= h.cfg.SummaryThreshold {
		h.mu.Unlock()
		return false, false, nil
	}
	turns := groupIntoTurns(h.messages)
	if len(turns) <= h.cfg.KeepRecentTurns+1 {
		h.mu.Unlock()
		return false, false, nil
	}
	boundary := len(turns) - h.cfg.KeepRecentTurns
	toSummarize := flattenTurns(turns[:boundary])
	kept := flattenTurns(turns[boundary:])
	h.mu.Unlock()

	if len(toSummarize) == 0 {
		return false, false, nil
	}

	summary, serr := h.summarizer.Summarize(ctx, toSummarize)
	if serr != nil {
		h.mu.Lock()
		h.tailRetain()
		h.mu.Unlock()
		return false, true, wrapf(KindCompression, serr, "compression failed, fell back to tail retention")
	}

	summaryMsg := models.Message{
		Role:      models.RoleAssistant,
		Content:   "[summary] " + summary,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	merged := make([]models.Message, 0, 1+len(kept))
	merged = append(merged, summaryMsg)
	merged = append(merged, kept...)
	h.messages = merged
	h.mu.Unlock()
	return true, false, nil
}

// tailRetain implements the fallback policy: keep the system prompt
// (always retained, held separately) plus the most recent MaxMessages-1
// messages, discarding the rest.
func (h *History) tailRetain() {
	keep := h.cfg.MaxMessages - 1
	if keep < 0 {
		keep = 0
	}
	if len(h.messages) > keep {
		h.messages = h.messages[len(h.messages)-keep:]
	}
}

// groupIntoTurns partitions messages into turns: a turn starts at a user or
// assistant message and includes the tool messages immediately following it.
// Grouping at turn granularity is what keeps compression from ever
// orphaning a tool_call_id — an assistant's tool_calls and the tool
// messages answering them are always summarized or kept together.
func groupIntoTurns(messages []models.Message) [][]models.Message {
	var turns [][]models.Message
	for _, m := range messages {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant || len(turns) == 0 {
			turns = append(turns, []models.Message{m})
			continue
		}
		turns[len(turns)-1] = append(turns[len(turns)-1], m)
	}
	return turns
}

func flattenTurns(turns [][]models.Message) []models.Message {
	var out []models.Message
	for _, t := range turns {
		out = append(out, t...)
	}
	return out
}
