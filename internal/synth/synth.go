package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/haasonsaas/evalforge/internal/backoff"
)

// DefaultMaxAttempts is the total model-call budget across the whole
// candidate list before the heuristic takes over.
const DefaultMaxAttempts = 3

var (
	// ErrAllCandidatesFailed is returned, wrapped with per-attempt
	// detail, when the model budget is exhausted and the heuristic
	// fallback is disabled.
	ErrAllCandidatesFailed = errors.New("synth: all model candidates failed")

	// ErrNoCandidates means no model was configured and the heuristic
	// fallback is disabled.
	ErrNoCandidates = errors.New("synth: no model candidates configured")
)

// Candidate is one provider/model pair in the priority list.
type Candidate struct {
	Provider string
	Model    string
}

func (c Candidate) String() string {
	return c.Provider + "/" + c.Model
}

// ParseCandidate parses a "provider/model" reference.
func ParseCandidate(ref string) (Candidate, error) {
	ref = strings.TrimSpace(ref)
	provider, model, ok := strings.Cut(ref, "/")
	if !ok || provider == "" || model == "" {
		return Candidate{}, fmt.Errorf("synth: model reference %q is not provider/model", ref)
	}
	return Candidate{Provider: strings.ToLower(provider), Model: model}, nil
}

// SpecSource asks one provider's model for a row spec. The returned
// spec has already passed schema and semantic validation.
type SpecSource interface {
	GenerateSpec(ctx context.Context, model string, schema Schema) (RowSpec, error)
}

// Attempt failure reasons, derived from error content.
const (
	ReasonRateLimit   = "rate_limit"
	ReasonAuthError   = "auth_error"
	ReasonTimeout     = "timeout"
	ReasonServerError = "server_error"
	ReasonBadSpec     = "bad_spec"
	ReasonUnknown     = "unknown"
)

// Attempt records one failed model call.
type Attempt struct {
	Candidate Candidate
	Reason    string
	Err       error
}

// Synthesizer drives spec generation across a prioritized candidate
// list and interprets the winning spec into records.
type Synthesizer struct {
	sources     map[string]SpecSource
	candidates  []Candidate
	maxAttempts int
	policy      backoff.Policy
	heuristic   bool
	log         *slog.Logger
}

// Options configures a Synthesizer.
type Options struct {
	// Candidates are tried in order, cycling if the attempt budget
	// exceeds the list length.
	Candidates []Candidate
	// MaxAttempts caps total model calls; 0 means DefaultMaxAttempts.
	MaxAttempts int
	// DisableHeuristic turns spec-generation exhaustion into a hard
	// error instead of falling back to HeuristicSpec.
	DisableHeuristic bool
	Policy           backoff.Policy
	Logger           *slog.Logger
}

// NewSynthesizer wires candidate models to their providers. sources is
// keyed by provider name ("gemini", "openai", "anthropic").
func NewSynthesizer(sources map[string]SpecSource, opts Options) (*Synthesizer, error) {
	for _, c := range opts.Candidates {
		if _, ok := sources[c.Provider]; !ok {
			return nil, fmt.Errorf("synth: candidate %s: no source for provider %q", c, c.Provider)
		}
	}
	s := &Synthesizer{
		sources:     sources,
		candidates:  opts.Candidates,
		maxAttempts: opts.MaxAttempts,
		policy:      opts.Policy,
		heuristic:   !opts.DisableHeuristic,
		log:         opts.Logger,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.policy == (backoff.Policy{}) {
		s.policy = backoff.DefaultPolicy()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Spec obtains a row spec for the schema: model candidates first, the
// heuristic on exhaustion. The returned attempts describe every model
// failure along the way, including when the spec itself succeeded.
func (s *Synthesizer) Spec(ctx context.Context, schema Schema) (RowSpec, []Attempt, error) {
	var attempts []Attempt

	if len(s.candidates) == 0 {
		if !s.heuristic {
			return RowSpec{}, nil, ErrNoCandidates
		}
		s.log.Info("no model candidates, using heuristic spec")
		return HeuristicSpec(schema), nil, nil
	}

	spec, err := backoff.Retry(ctx, s.policy, s.maxAttempts, func(attempt int) (RowSpec, error) {
		candidate := s.candidates[(attempt-1)%len(s.candidates)]
		source := s.sources[candidate.Provider]

		spec, err := source.GenerateSpec(ctx, candidate.Model, schema)
		if err == nil {
			s.log.Info("model produced row spec",
				"provider", candidate.Provider,
				"model", candidate.Model,
				"attempt", attempt)
			return spec, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RowSpec{}, ctxErr
		}

		reason := classifyReason(err)
		attempts = append(attempts, Attempt{Candidate: candidate, Reason: reason, Err: err})
		s.log.Warn("model attempt failed",
			"provider", candidate.Provider,
			"model", candidate.Model,
			"attempt", attempt,
			"reason", reason,
			"error", err)
		return RowSpec{}, err
	})
	if err == nil {
		return spec, attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return RowSpec{}, attempts, ctxErr
	}

	if s.heuristic {
		s.log.Warn("model budget exhausted, using heuristic spec", "attempts", len(attempts))
		return HeuristicSpec(schema), attempts, nil
	}
	return RowSpec{}, attempts, aggregateError(attempts)
}

// Generate runs the full synthesis: spec acquisition, then
// interpretation into n records imitating the schema.
func (s *Synthesizer) Generate(ctx context.Context, schema Schema, n int, rng *rand.Rand) (header []string, records [][]string, err error) {
	spec, _, err := s.Spec(ctx, schema)
	if err != nil {
		return nil, nil, err
	}
	return spec.Rows(n, rng)
}

// classifyReason buckets a model failure by error content.
func classifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "spec"):
		return ReasonBadSpec
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return ReasonRateLimit
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return ReasonAuthError
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ReasonTimeout
	case strings.Contains(msg, "server error") || strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// aggregateError summarizes every failed attempt under the sentinel.
func aggregateError(attempts []Attempt) error {
	if len(attempts) == 0 {
		return ErrAllCandidatesFailed
	}
	var sb strings.Builder
	for i, a := range attempts {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%d. %s [%s] %v", i+1, a.Candidate, a.Reason, a.Err)
	}
	return fmt.Errorf("%w: %s", ErrAllCandidatesFailed, sb.String())
}
