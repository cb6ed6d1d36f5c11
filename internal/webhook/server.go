// Package webhook is the HTTP surface of the service: the issue-tracker
// webhook receiver, a health probe, and a manual trigger endpoint.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/nidralux/caseforge/internal/pipeline"
)

// Processor runs the generation flow for one ticket. Implemented by
// pipeline.Pipeline.
type Processor interface {
	ProcessTicket(ctx context.Context, ticketKey string) (pipeline.RunResult, error)
}

type Server struct {
	processor Processor
	secret    string
}

// NewServer builds the handler. An empty secret disables signature checks.
func NewServer(processor Processor, secret string) http.Handler {
	s := &Server{processor: processor, secret: secret}
	mux := http.NewServeMux()
	mux.HandleFunc("/jira-webhook", s.handleJiraWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/tickets/", s.handleManualGenerate)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleJiraWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}
	if err := s.verifySignature(r.Header.Get("X-Jira-Signature"), body); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	ev, ok := ParseIssueEvent(body)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Event ignored - not a relevant issue event"})
		return
	}
	if !IsReadyForQA(ev.ToStatus) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Event processed but no action taken"})
		return
	}

	res, err := s.processor.ProcessTicket(r.Context(), ev.Key)
	if err != nil {
		log.Printf("processing ticket %s failed at %s: %v", ev.Key, pipeline.StageNameFromError(err), err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to generate test cases for " + ev.Key,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Successfully generated test cases for " + ev.Key,
		"test_cases": len(res.Records),
	})
}

func (s *Server) handleManualGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/tickets/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "generate" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	key := parts[0]

	res, err := s.processor.ProcessTicket(r.Context(), key)
	if err != nil {
		log.Printf("manual generation for %s failed at %s: %v", key, pipeline.StageNameFromError(err), err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Successfully generated test cases for " + key,
		"run_id":     res.RunID,
		"test_cases": len(res.Records),
		"avg_score":  res.AvgScore,
	})
}

func (s *Server) verifySignature(signature string, body []byte) error {
	if s.secret == "" {
		return nil
	}
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return errSignature("missing signature")
	}
	if strings.HasPrefix(strings.ToLower(sig), "sha256=") {
		sig = sig[len("sha256="):]
	}
	provided, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return errSignature("invalid signature encoding")
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	_, _ = mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return errSignature("invalid signature")
	}
	return nil
}

type errSignature string

func (e errSignature) Error() string { return string(e) }

// Sign computes the hex HMAC-SHA256 of a payload. Exposed for clients and
// tests.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
