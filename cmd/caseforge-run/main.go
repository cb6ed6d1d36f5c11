package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nidralux/caseforge/internal/config"
	"github.com/nidralux/caseforge/internal/generate"
	"github.com/nidralux/caseforge/internal/jira"
	"github.com/nidralux/caseforge/internal/report"
	"github.com/nidralux/caseforge/internal/runstore"
	"github.com/nidralux/caseforge/internal/testcase"
)

func main() {
	var (
		inputPath = flag.String("input", "", "Path to a saved model response to parse instead of calling the API")
		ticket    = flag.String("ticket", "", "Jira ticket key to fetch and generate test cases for")
		ticketKey = flag.String("ticket-key", "", "Ticket key to label the report with (defaults to -ticket)")
		output    = flag.String("output", "", "Path to write the markdown report (defaults to stdout)")
		pdfPath   = flag.String("pdf", "", "Optional path to write a PDF rendering of the report")
		dbPath    = flag.String("db", "", "Optional run history SQLite database to record this run in")
	)
	flag.Parse()

	if *inputPath == "" && *ticket == "" {
		log.Fatal("one of -input or -ticket is required")
	}
	key := *ticketKey
	if key == "" {
		key = *ticket
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	text, err := loadText(ctx, *inputPath, *ticket)
	if err != nil {
		log.Fatal(err)
	}

	extractor := testcase.Extractor{Warnf: log.Printf}
	records, stats := extractor.ParseWithStats(text, key)
	if len(records) == 0 {
		log.Fatal("no usable test cases found in the response")
	}
	scores := testcase.Score(records)

	in := report.Input{
		TicketKey:   key,
		GeneratedAt: time.Now(),
		Records:     records,
		Scores:      scores,
		Stats:       stats,
	}

	md := report.BuildMarkdown(in)
	if err := writeReport(*output, md); err != nil {
		log.Fatalf("write markdown: %v", err)
	}
	if *pdfPath != "" {
		pdf, err := report.NewChromiumPDFRenderer().RenderPDF(ctx, in)
		if err != nil {
			log.Fatalf("render pdf: %v", err)
		}
		if err := os.WriteFile(*pdfPath, pdf, 0o644); err != nil {
			log.Fatalf("write pdf: %v", err)
		}
	}
	if *dbPath != "" {
		if err := saveRun(ctx, *dbPath, key, records, scores, stats); err != nil {
			log.Fatalf("record run: %v", err)
		}
	}

	var total float64
	for _, s := range scores {
		total += s.Score
	}
	log.Printf("parsed %d of %d blocks for %s (avg score %.0f%%)",
		stats.Parsed, stats.BlocksFound, key, total/float64(len(scores)))
}

func loadText(ctx context.Context, inputPath, ticket string) (string, error) {
	if inputPath != "" {
		raw, err := os.ReadFile(inputPath)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(raw), nil
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	issue, err := jira.NewClient(cfg.JiraURL, cfg.JiraUsername, cfg.JiraAPIToken).GetIssue(ctx, ticket)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ticket, err)
	}
	svc := generate.NewService(generate.NewAnthropicCaller(cfg.AnthropicAPIKey), cfg.MaxRetries)
	text, err := svc.GenerateTestCases(ctx, ticket, issue.Description)
	if err != nil {
		return "", err
	}
	return text, nil
}

func writeReport(outputPath, markdown string) error {
	if outputPath == "" {
		_, err := fmt.Print(markdown)
		return err
	}
	return os.WriteFile(outputPath, []byte(markdown), 0o644)
}

func saveRun(ctx context.Context, dbPath, key string, records []testcase.ParsedTestCase, scores []testcase.QualityScore, stats testcase.ParseStats) error {
	store, err := runstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var total float64
	for _, s := range scores {
		total += s.Score
	}
	now := time.Now()
	run := runstore.Run{
		TicketKey:   key,
		Source:      "cli",
		Status:      "succeeded",
		BlocksFound: stats.BlocksFound,
		Parsed:      stats.Parsed,
		Incomplete:  stats.Incomplete,
		AvgScore:    total / float64(len(scores)),
		StartedAt:   now,
		FinishedAt:  now,
	}
	_, err = store.SaveRun(ctx, run, records, scores)
	return err
}
