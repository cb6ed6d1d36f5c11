package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/nidralux/caseforge/internal/config"
	"github.com/nidralux/caseforge/internal/generate"
	"github.com/nidralux/caseforge/internal/jira"
	"github.com/nidralux/caseforge/internal/pipeline"
	"github.com/nidralux/caseforge/internal/runstore"
	"github.com/nidralux/caseforge/internal/sheets"
	"github.com/nidralux/caseforge/internal/telemetry"
	"github.com/nidralux/caseforge/internal/webhook"
)

func main() {
	cfg := config.Load()

	var (
		addr   = flag.String("addr", cfg.Addr, "Listen address")
		dbPath = flag.String("db", cfg.DBPath, "Path to the run history SQLite database")
	)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	log.Printf("configuration: %v", cfg.Redacted())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	shutdownTracer, err := telemetry.Setup(ctx, "caseforge-webhook", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("telemetry setup: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("warning: tracer shutdown: %v", err)
		}
	}()

	store, err := runstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open run store %s: %v", *dbPath, err)
	}
	defer store.Close()

	caller := generate.NewAnthropicCaller(cfg.AnthropicAPIKey)
	jiraClient := jira.NewClient(cfg.JiraURL, cfg.JiraUsername, cfg.JiraAPIToken)

	p := &pipeline.Pipeline{
		Issues:    jiraClient,
		Generator: generate.NewService(caller, cfg.MaxRetries),
		Uploader:  sheets.NewClient(cfg.SpreadsheetID, cfg.SheetsToken),
		Commenter: jiraClient,
		Store:     store,
		Source:    "webhook",
		Logf:      log.Printf,
	}

	handler := webhook.NewServer(p, cfg.WebhookSecret)

	log.Printf("caseforge webhook listening on %s (db=%s)", *addr, *dbPath)
	srv := &http.Server{Addr: *addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
