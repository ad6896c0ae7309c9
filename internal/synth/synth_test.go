package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/haasonsaas/evalforge/internal/backoff"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fastPolicy() backoff.Policy {
	return backoff.Policy{InitialMs: 1, MaxMs: 1, Factor: 1, Jitter: 0}
}

func testSchema() Schema {
	return Schema{
		Columns: []string{"Date", "Region", "Revenue"},
		Kinds: map[string]string{
			"Date":    "temporal",
			"Region":  "categorical",
			"Revenue": "numeric",
		},
	}
}

// fakeSource scripts per-call results keyed by call order.
type fakeSource struct {
	spec  RowSpec
	errs  []error
	calls int
	seen  []string
}

func (f *fakeSource) GenerateSpec(_ context.Context, model string, _ Schema) (RowSpec, error) {
	f.calls++
	f.seen = append(f.seen, model)
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return RowSpec{}, f.errs[f.calls-1]
	}
	return f.spec, nil
}

func goodSpec() RowSpec {
	return RowSpec{Columns: []ColumnSpec{
		{Name: "Date", Generator: GenDate, StartDate: "2024-01-01", EndDate: "2024-03-31"},
		{Name: "Region", Generator: GenCategory, Values: []string{"East", "West"}},
		{Name: "Revenue", Generator: GenCurrency},
	}}
}

func TestParseCandidate(t *testing.T) {
	tests := []struct {
		ref     string
		want    Candidate
		wantErr bool
	}{
		{"gemini/gemini-2.0-flash-001", Candidate{"gemini", "gemini-2.0-flash-001"}, false},
		{"Anthropic/claude-sonnet-4-20250514", Candidate{"anthropic", "claude-sonnet-4-20250514"}, false},
		{"  openai/gpt-4o  ", Candidate{"openai", "gpt-4o"}, false},
		{"nomodel", Candidate{}, true},
		{"/model", Candidate{}, true},
		{"provider/", Candidate{}, true},
		{"", Candidate{}, true},
	}
	for _, tt := range tests {
		got, err := ParseCandidate(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCandidate(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCandidate(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestSynthesizer_FirstCandidateSucceeds(t *testing.T) {
	src := &fakeSource{spec: goodSpec()}
	s, err := NewSynthesizer(map[string]SpecSource{"gemini": src}, Options{
		Candidates: []Candidate{{"gemini", "gemini-2.0-flash-001"}},
		Policy:     fastPolicy(),
		Logger:     nopLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	spec, attempts, err := s.Spec(context.Background(), testSchema())
	if err != nil {
		t.Fatalf("Spec() error = %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("attempts = %d, want 0", len(attempts))
	}
	if len(spec.Columns) != 3 {
		t.Errorf("spec has %d columns, want 3", len(spec.Columns))
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestSynthesizer_WalksCandidateList(t *testing.T) {
	gemini := &fakeSource{errs: []error{errors.New("429 too many requests")}}
	anthro := &fakeSource{spec: goodSpec()}
	s, err := NewSynthesizer(map[string]SpecSource{"gemini": gemini, "anthropic": anthro}, Options{
		Candidates: []Candidate{
			{"gemini", "gemini-2.0-flash-001"},
			{"anthropic", "claude-sonnet-4-20250514"},
		},
		Policy: fastPolicy(),
		Logger: nopLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	_, attempts, err := s.Spec(context.Background(), testSchema())
	if err != nil {
		t.Fatalf("Spec() error = %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	if attempts[0].Reason != ReasonRateLimit {
		t.Errorf("attempt reason = %q, want %q", attempts[0].Reason, ReasonRateLimit)
	}
	if anthro.calls != 1 {
		t.Errorf("second candidate called %d times, want 1", anthro.calls)
	}
}

func TestSynthesizer_CyclesWhenListIsShort(t *testing.T) {
	src := &fakeSource{
		spec: goodSpec(),
		errs: []error{errors.New("server error"), errors.New("server error")},
	}
	s, err := NewSynthesizer(map[string]SpecSource{"gemini": src}, Options{
		Candidates: []Candidate{{"gemini", "gemini-2.0-flash-001"}},
		Policy:     fastPolicy(),
		Logger:     nopLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	_, attempts, err := s.Spec(context.Background(), testSchema())
	if err != nil {
		t.Fatalf("Spec() error = %v", err)
	}
	if src.calls != 3 {
		t.Errorf("source called %d times, want 3", src.calls)
	}
	if len(attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(attempts))
	}
}

func TestSynthesizer_HeuristicOnExhaustion(t *testing.T) {
	boom := errors.New("synth: spec rejected by schema")
	src := &fakeSource{errs: []error{boom, boom, boom}}
	s, err := NewSynthesizer(map[string]SpecSource{"gemini": src}, Options{
		Candidates: []Candidate{{"gemini", "gemini-2.0-flash-001"}},
		Policy:     fastPolicy(),
		Logger:     nopLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	spec, attempts, err := s.Spec(context.Background(), testSchema())
	if err != nil {
		t.Fatalf("Spec() error = %v, want heuristic fallback", err)
	}
	if src.calls != DefaultMaxAttempts {
		t.Errorf("source called %d times, want %d", src.calls, DefaultMaxAttempts)
	}
	if len(attempts) != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", len(attempts), DefaultMaxAttempts)
	}
	for _, a := range attempts {
		if a.Reason != ReasonBadSpec {
			t.Errorf("attempt reason = %q, want %q", a.Reason, ReasonBadSpec)
		}
	}
	// Heuristic output covers the schema columns.
	if err := spec.Validate(testSchema().Columns); err != nil {
		t.Errorf("heuristic spec invalid: %v", err)
	}
}

func TestSynthesizer_DisabledHeuristicIsFatal(t *testing.T) {
	boom := errors.New("invalid api key")
	src := &fakeSource{errs: []error{boom, boom, boom}}
	s, err := NewSynthesizer(map[string]SpecSource{"gemini": src}, Options{
		Candidates:       []Candidate{{"gemini", "gemini-2.0-flash-001"}},
		DisableHeuristic: true,
		Policy:           fastPolicy(),
		Logger:           nopLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	_, attempts, err := s.Spec(context.Background(), testSchema())
	if !errors.Is(err, ErrAllCandidatesFailed) {
		t.Fatalf("Spec() error = %v, want ErrAllCandidatesFailed", err)
	}
	if len(attempts) != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", len(attempts), DefaultMaxAttempts)
	}
	for _, a := range attempts {
		if a.Reason != ReasonAuthError {
			t.Errorf("attempt reason = %q, want %q", a.Reason, ReasonAuthError)
		}
	}
}

func TestSynthesizer_NoCandidates(t *testing.T) {
	s, err := NewSynthesizer(nil, Options{Logger: nopLogger()})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	spec, _, err := s.Spec(context.Background(), testSchema())
	if err != nil {
		t.Fatalf("Spec() error = %v, want heuristic", err)
	}
	if len(spec.Columns) != 3 {
		t.Errorf("spec has %d columns, want 3", len(spec.Columns))
	}

	strict, err := NewSynthesizer(nil, Options{DisableHeuristic: true, Logger: nopLogger()})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	if _, _, err := strict.Spec(context.Background(), testSchema()); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Spec() error = %v, want ErrNoCandidates", err)
	}
}

func TestSynthesizer_ContextCancelStopsRun(t *testing.T) {
	src := &fakeSource{spec: goodSpec()}
	s, err := NewSynthesizer(map[string]SpecSource{"gemini": src}, Options{
		Candidates: []Candidate{{"gemini", "gemini-2.0-flash-001"}},
		Policy:     fastPolicy(),
		Logger:     nopLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Spec(ctx, testSchema()); !errors.Is(err, context.Canceled) {
		t.Errorf("Spec() error = %v, want context.Canceled", err)
	}
	if src.calls != 0 {
		t.Errorf("source called %d times after cancellation, want 0", src.calls)
	}
}

func TestNewSynthesizer_RejectsUnwiredProvider(t *testing.T) {
	_, err := NewSynthesizer(map[string]SpecSource{}, Options{
		Candidates: []Candidate{{"gemini", "gemini-2.0-flash-001"}},
	})
	if err == nil {
		t.Fatal("NewSynthesizer() expected error for missing provider source")
	}
}

func TestClassifyReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("rate limit exceeded"), ReasonRateLimit},
		{errors.New("HTTP 429 too many requests"), ReasonRateLimit},
		{errors.New("invalid api key"), ReasonAuthError},
		{errors.New("request timeout"), ReasonTimeout},
		{context.DeadlineExceeded, ReasonTimeout},
		{errors.New("internal server error"), ReasonServerError},
		{errors.New("synth: spec is not valid JSON"), ReasonBadSpec},
		{errors.New("something else"), ReasonUnknown},
	}
	for _, tt := range tests {
		if got := classifyReason(tt.err); got != tt.want {
			t.Errorf("classifyReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAggregateError(t *testing.T) {
	err := aggregateError([]Attempt{
		{Candidate: Candidate{"gemini", "m1"}, Reason: ReasonRateLimit, Err: errors.New("429")},
		{Candidate: Candidate{"openai", "m2"}, Reason: ReasonServerError, Err: errors.New("500")},
	})
	if !errors.Is(err, ErrAllCandidatesFailed) {
		t.Fatalf("error = %v, want wrapped ErrAllCandidatesFailed", err)
	}
	msg := err.Error()
	for _, want := range []string{"gemini/m1", "openai/m2", ReasonRateLimit, ReasonServerError} {
		if !contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"bare object", `{"columns":[]}`, `{"columns":[]}`, false},
		{"fenced", "```json\n{\"columns\":[]}\n```", `{"columns":[]}`, false},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose wrapped", `Here is the spec: {"a":1} hope it helps`, `{"a":1}`, false},
		{"empty", "", "", true},
		{"no object", "sorry, I cannot do that", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzeRecords(t *testing.T) {
	header := []string{"Date", "Region", "Revenue"}
	var records [][]string
	for i := 0; i < 10; i++ {
		records = append(records, []string{
			fmt.Sprintf("2024-01-%02d", i+1), "East", fmt.Sprintf("%d", 100+i),
		})
	}

	schema, err := AnalyzeRecords(header, records)
	if err != nil {
		t.Fatalf("AnalyzeRecords() error = %v", err)
	}
	wantKinds := map[string]string{"Date": "temporal", "Region": "categorical", "Revenue": "numeric"}
	for name, want := range wantKinds {
		if got := schema.Kinds[name]; got != want {
			t.Errorf("Kinds[%s] = %q, want %q", name, got, want)
		}
	}
	if len(schema.SampleRows) != maxSampleRows {
		t.Errorf("len(SampleRows) = %d, want %d", len(schema.SampleRows), maxSampleRows)
	}
	if got := schema.SampleRows[0]["Date"]; got != "2024-01-01" {
		t.Errorf("SampleRows[0][Date] = %q, want 2024-01-01", got)
	}
}
