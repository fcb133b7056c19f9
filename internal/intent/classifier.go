package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/llm"
)

// Request describes one message to classify. A nil Procedure selects the
// idle vocabulary.
type Request struct {
	Message    string
	Procedure  *catalog.Procedure
	StepNumber int
	History    []string // "speaker: text" lines, oldest first
}

// Result is a classification. Fallback is set when the reasoning service
// was not used or failed and a deterministic rule produced the intent.
type Result struct {
	Intent     Intent
	Confidence int
	Fallback   bool
}

// ClassifierOpts configures a Classifier.
type ClassifierOpts struct {
	Client llm.Client
	Logger zerolog.Logger
}

// Classifier turns guard messages into intents.
type Classifier struct {
	client llm.Client
	log    zerolog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(opts ClassifierOpts) (*Classifier, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("intent: classifier: llm client is required")
	}
	return &Classifier{client: opts.Client, log: opts.Logger}, nil
}

type labelled struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classify returns the intent for req. It never fails: reasoning-service
// errors and unparseable replies fall back to keyword rules.
func (c *Classifier) Classify(ctx context.Context, req Request) Result {
	if req.Procedure != nil {
		return c.classifyActive(ctx, req)
	}
	return c.classifyIdle(ctx, req)
}

func (c *Classifier) classifyActive(ctx context.Context, req Request) Result {
	if IsAmbiguousAffirmation(req.Message) {
		return Result{Intent: Clarify, Confidence: 100}
	}

	got, err := c.ask(ctx, llm.Request{
		System:    activeSystemPrompt,
		Prompt:    activePrompt(req),
		MaxTokens: 60,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("classification failed, using fallback")
		return activeFallback(req.Message)
	}

	res := Result{Intent: Parse(got.Intent), Confidence: normalizeConfidence(got.Confidence)}
	if !res.Intent.In(ActiveVocabulary) {
		c.log.Warn().Str("label", got.Intent).Msg("unrecognized intent label, assuming NEXT")
		return Result{Intent: Next, Confidence: 100, Fallback: true}
	}
	if res.Intent == Solved && !MentionsResolution(req.Message) {
		c.log.Debug().Str("message", req.Message).Msg("SOLVED without resolution wording, downgrading to CLARIFY")
		res.Intent = Clarify
	}
	return res
}

func (c *Classifier) classifyIdle(ctx context.Context, req Request) Result {
	got, err := c.ask(ctx, llm.Request{
		System:    idleSystemPrompt,
		Prompt:    idlePrompt(req),
		MaxTokens: 60,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("classification failed, using fallback")
		return idleFallback(req.Message)
	}
	res := Result{Intent: Parse(got.Intent), Confidence: normalizeConfidence(got.Confidence)}
	if !res.Intent.In(IdleVocabulary) {
		c.log.Warn().Str("label", got.Intent).Msg("unrecognized intent label, assuming QUESTION")
		return Result{Intent: Question, Confidence: 100, Fallback: true}
	}
	return res
}

func (c *Classifier) ask(ctx context.Context, req llm.Request) (labelled, error) {
	raw, err := c.client.Complete(ctx, req)
	if err != nil {
		return labelled{}, err
	}
	return llm.ExtractJSON(raw, func(l labelled) error {
		if strings.TrimSpace(l.Intent) == "" {
			return fmt.Errorf("intent is required")
		}
		return nil
	})
}

// activeFallback is used when the reasoning service is unavailable. It
// assumes progress unless the message clearly asks for a human or says the
// guard is stuck.
func activeFallback(message string) Result {
	switch {
	case IsAmbiguousAffirmation(message):
		return Result{Intent: Clarify, Confidence: 100, Fallback: true}
	case IsEscalationRequest(message):
		return Result{Intent: Escalate, Confidence: 100, Fallback: true}
	case IsConfused(message):
		return Result{Intent: Stuck, Confidence: 100, Fallback: true}
	default:
		return Result{Intent: Next, Confidence: 100, Fallback: true}
	}
}

func idleFallback(message string) Result {
	switch {
	case IsReport(message):
		return Result{Intent: Report, Confidence: 100, Fallback: true}
	case IsSignOff(message):
		return Result{Intent: SignOff, Confidence: 100, Fallback: true}
	case IsEscalationRequest(message):
		return Result{Intent: NeedSupervisor, Confidence: 100, Fallback: true}
	default:
		return Result{Intent: Question, Confidence: 100, Fallback: true}
	}
}

// normalizeConfidence maps model confidence onto 0..100. Fractions in
// (0, 1) are read as probabilities; whole numbers are already percentages.
func normalizeConfidence(v float64) int {
	if v > 0 && v < 1 {
		v *= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v + 0.5)
}

// LocateStep asks which step of proc the message implies the guard is at.
// It returns 1 when the service fails or answers with something that is not
// a step number in range.
func (c *Classifier) LocateStep(ctx context.Context, proc *catalog.Procedure, message string) int {
	raw, err := c.client.Complete(ctx, llm.Request{
		System:    locatorSystemPrompt,
		Prompt:    locatorPrompt(proc, message),
		MaxTokens: 10,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("step locator failed, defaulting to step 1")
		return 1
	}
	n, ok := firstInt(raw)
	if !ok || n < 1 || n > len(proc.Steps) {
		c.log.Warn().Str("reply", raw).Int("steps", len(proc.Steps)).Msg("unparseable step locator reply, defaulting to step 1")
		return 1
	}
	return n
}

// firstInt returns the first run of digits in s.
func firstInt(s string) (int, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
