// Package pipeline orchestrates a ticket's pass through the system: fetch
// the issue, generate raw test-case text, parse and score it, export the
// rows, persist the run, and leave a comment on the ticket.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nidralux/caseforge/internal/jira"
	"github.com/nidralux/caseforge/internal/runstore"
	"github.com/nidralux/caseforge/internal/sheets"
	"github.com/nidralux/caseforge/internal/testcase"
)

const tracerName = "caseforge/pipeline"

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

type IssueFetcher interface {
	GetIssue(ctx context.Context, key string) (jira.Issue, error)
}

type Generator interface {
	GenerateTestCases(ctx context.Context, ticketKey, description string) (string, error)
}

type Uploader interface {
	AppendTestCases(ctx context.Context, ticketKey string, records []testcase.ParsedTestCase, scores []testcase.QualityScore) error
	SpreadsheetURL() string
}

type Commenter interface {
	AddComment(ctx context.Context, key, body string) error
}

type RunSaver interface {
	SaveRun(ctx context.Context, run runstore.Run, records []testcase.ParsedTestCase, scores []testcase.QualityScore) (int64, error)
}

type RunResult struct {
	TicketKey     string
	RunID         int64
	Records       []testcase.ParsedTestCase
	Scores        []testcase.QualityScore
	Stats         testcase.ParseStats
	AvgScore      float64
	CommentPosted bool
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Pipeline wires the collaborators. Store and Commenter may be nil; their
// stages are skipped. Logf, when set, receives warning-level notes for
// non-fatal degradation.
type Pipeline struct {
	Issues    IssueFetcher
	Generator Generator
	Uploader  Uploader
	Commenter Commenter
	Store     RunSaver
	Source    string

	Logf func(format string, args ...any)
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// ProcessTicket runs the full flow for one ticket key. On a stage failure a
// failed run record is still persisted before the error is returned.
func (p *Pipeline) ProcessTicket(ctx context.Context, ticketKey string) (RunResult, error) {
	res := RunResult{TicketKey: ticketKey, StartedAt: time.Now()}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "process_ticket",
		trace.WithAttributes(attribute.String("ticket.key", ticketKey)))
	defer span.End()

	if strings.TrimSpace(ticketKey) == "" {
		return res, &StageError{Stage: "fetch", Err: errors.New("ticket key is required")}
	}

	issue, err := p.Issues.GetIssue(ctx, ticketKey)
	if err != nil {
		return p.fail(ctx, res, span, &StageError{Stage: "fetch", Err: err})
	}
	if strings.TrimSpace(issue.Description) == "" {
		return p.fail(ctx, res, span, &StageError{Stage: "fetch", Err: fmt.Errorf("ticket %s has no description", ticketKey)})
	}

	raw, err := p.Generator.GenerateTestCases(ctx, ticketKey, issue.Description)
	if err != nil {
		return p.fail(ctx, res, span, &StageError{Stage: "generate", Err: err})
	}

	extractor := &testcase.Extractor{Warnf: p.Logf}
	records, stats := extractor.ParseWithStats(raw, ticketKey)
	res.Stats = stats
	if len(records) == 0 {
		return p.fail(ctx, res, span, &StageError{Stage: "parse", Err: fmt.Errorf("no usable test cases in generated text for %s", ticketKey)})
	}
	res.Records = records

	res.Scores = testcase.Score(records)
	res.AvgScore = averageScore(res.Scores)
	span.SetAttributes(
		attribute.Int("testcases.parsed", stats.Parsed),
		attribute.Int("testcases.incomplete", stats.Incomplete),
		attribute.Float64("testcases.avg_score", res.AvgScore),
	)

	if err := p.Uploader.AppendTestCases(ctx, ticketKey, records, res.Scores); err != nil {
		return p.fail(ctx, res, span, &StageError{Stage: "export", Err: err})
	}

	res.FinishedAt = time.Now()
	p.saveRun(ctx, &res, "succeeded", "")

	if p.Commenter != nil {
		comment := sheets.CommentBody(p.Uploader.SpreadsheetURL())
		if err := p.Commenter.AddComment(ctx, ticketKey, comment); err != nil {
			// Non-critical: the export already succeeded.
			p.logf("failed to add comment to ticket %s: %v", ticketKey, err)
		} else {
			res.CommentPosted = true
		}
	}

	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, res RunResult, span trace.Span, serr *StageError) (RunResult, error) {
	span.RecordError(serr)
	res.FinishedAt = time.Now()
	p.saveRun(ctx, &res, "failed", serr.Error())
	return res, serr
}

func (p *Pipeline) saveRun(ctx context.Context, res *RunResult, status, errText string) {
	if p.Store == nil {
		return
	}
	source := p.Source
	if source == "" {
		source = "webhook"
	}
	run := runstore.Run{
		TicketKey:   res.TicketKey,
		Source:      source,
		Status:      status,
		BlocksFound: res.Stats.BlocksFound,
		Parsed:      res.Stats.Parsed,
		Incomplete:  res.Stats.Incomplete,
		AvgScore:    res.AvgScore,
		Error:       errText,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
	}
	id, err := p.Store.SaveRun(ctx, run, res.Records, res.Scores)
	if err != nil {
		p.logf("failed to persist run for ticket %s: %v", res.TicketKey, err)
		return
	}
	res.RunID = id
}

func averageScore(scores []testcase.QualityScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0.0
	for _, qs := range scores {
		total += qs.Score
	}
	return total / float64(len(scores))
}
