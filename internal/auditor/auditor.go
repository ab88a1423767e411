// Package auditor judges whether a free-text call note meets the quality bar
// for the reported talk time.
package auditor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Verdict is the audit result. Reason is only populated by the remote
// classifier; the local heuristic cannot explain itself.
type Verdict struct {
	Valid  bool   `json:"isValid"`
	Reason string `json:"reason,omitempty"`
}

// Auditor is the contract the submission pipeline depends on.
//
// Implementations must be resilient to their backing classifier being
// unavailable: Audit never returns an error and never blocks past a bounded
// timeout. Infrastructure failure degrades to the local heuristic.
type Auditor interface {
	Audit(ctx context.Context, note, durationLabel string) Verdict
}

// TextModel is the minimal generative-text dependency of the remote path.
type TextModel interface {
	// GenerateJSON sends a prompt expecting a single JSON object back.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

const defaultTimeout = 5 * time.Second

// Service runs the remote rubric first and falls back to the heuristic on any
// failure: transport error, timeout, or a response that is not the expected
// JSON shape.
type Service struct {
	model   TextModel
	timeout time.Duration
	log     *slog.Logger
}

func NewService(model TextModel, timeout time.Duration, log *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{model: model, timeout: timeout, log: log}
}

const rubric = `Audit this CRM call note for quality.
Duration: %s
Note: %q

Is this note meaningful and related to a business call?
Reject if it's:
1. Gibberish (e.g. "asdfgh")
2. Highly repetitive (e.g. "ok ok ok ok ok")
3. Too generic for a long call (e.g. just saying "done" for a 5 minute call)
4. Completely unrelated text.

Respond ONLY in JSON format: {"isValid": boolean, "reason": "short explanation in Hindi/English if invalid"}`

func (s *Service) Audit(ctx context.Context, note, durationLabel string) Verdict {
	if s.model != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		raw, err := s.model.GenerateJSON(ctx, fmt.Sprintf(rubric, durationLabel, note))
		if err == nil {
			if v, ok := parseVerdict(raw); ok {
				return v
			}
			s.log.Warn("auditor response mis-shaped, using heuristic")
		} else {
			s.log.Warn("auditor call failed, using heuristic", "err", err)
		}
	}
	return Heuristic(note, durationLabel)
}

// parseVerdict extracts the verdict from the model output. Models sometimes
// wrap JSON in code fences or prose; gjson tolerates both.
func parseVerdict(raw string) (Verdict, bool) {
	doc := raw
	if i := strings.IndexByte(doc, '{'); i >= 0 {
		doc = doc[i:]
	}
	valid := gjson.Get(doc, "isValid")
	if !valid.Exists() || (valid.Type != gjson.True && valid.Type != gjson.False) {
		return Verdict{}, false
	}
	return Verdict{
		Valid:  valid.Bool(),
		Reason: gjson.Get(doc, "reason").String(),
	}, true
}

// Heuristic is the offline fallback: reject notes with a run of five or more
// identical characters, and single-word notes for calls that lasted a full
// minute or longer.
func Heuristic(note, durationLabel string) Verdict {
	if hasRepeatedRun(note, 5) {
		return Verdict{Valid: false}
	}
	if wordCount(note) < 2 && minutesOf(durationLabel) >= 1 {
		return Verdict{Valid: false}
	}
	return Verdict{Valid: true}
}

func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// minutesOf parses the leading minutes from a "<m>m <s>s" duration label.
func minutesOf(label string) int {
	head, _, ok := strings.Cut(label, "m")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0
	}
	return n
}
