package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidralux/caseforge/internal/pipeline"
	"github.com/nidralux/caseforge/internal/testcase"
)

type fakeProcessor struct {
	keys []string
	res  pipeline.RunResult
	err  error
}

func (f *fakeProcessor) ProcessTicket(_ context.Context, key string) (pipeline.RunResult, error) {
	f.keys = append(f.keys, key)
	return f.res, f.err
}

func transitionPayload(key, from, to string) []byte {
	blob, _ := json.Marshal(map[string]any{
		"webhookEvent": "jira:issue_updated",
		"issue": map[string]any{
			"key": key,
			"fields": map[string]any{
				"status": map[string]any{"name": to},
			},
		},
		"changelog": map[string]any{
			"items": []map[string]any{
				{"field": "status", "fromString": from, "toString": to},
			},
		},
	})
	return blob
}

func postWebhook(t *testing.T, h http.Handler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jira-webhook", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookTriggersProcessing(t *testing.T) {
	proc := &fakeProcessor{res: pipeline.RunResult{Records: []testcase.ParsedTestCase{{ID: "TC-ID-001"}}}}
	h := NewServer(proc, "")

	rec := postWebhook(t, h, transitionPayload("PROJ-42", "In Progress", "Ready for QA"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(proc.keys) != 1 || proc.keys[0] != "PROJ-42" {
		t.Fatalf("processed keys = %v", proc.keys)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != true {
		t.Errorf("response = %v", resp)
	}
}

func TestWebhookStatusVariations(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"Ready for QA", true},
		{"READY FOR QA", true},
		{"ready 4 qa", true},
		{"Ready for Quality Assurance review", true},
		{"In Progress", false},
		{"Done", false},
	}
	for _, c := range cases {
		proc := &fakeProcessor{}
		h := NewServer(proc, "")
		rec := postWebhook(t, h, transitionPayload("PROJ-1", "Open", c.status), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", c.status, rec.Code)
		}
		if got := len(proc.keys) == 1; got != c.want {
			t.Errorf("%s: processed=%v, want %v", c.status, got, c.want)
		}
	}
}

func TestWebhookIgnoresNonIssueEvents(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewServer(proc, "")
	body, _ := json.Marshal(map[string]any{"webhookEvent": "comment_created"})
	rec := postWebhook(t, h, body, nil)
	if rec.Code != http.StatusOK || len(proc.keys) != 0 {
		t.Fatalf("status = %d processed = %v", rec.Code, proc.keys)
	}
}

func TestWebhookFallsBackToCurrentStatus(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewServer(proc, "")
	body, _ := json.Marshal(map[string]any{
		"webhookEvent": "jira:issue_updated",
		"issue": map[string]any{
			"key": "PROJ-7",
			"fields": map[string]any{
				"status": map[string]any{"name": "Ready for QA"},
			},
		},
	})
	rec := postWebhook(t, h, body, nil)
	if rec.Code != http.StatusOK || len(proc.keys) != 1 {
		t.Fatalf("status = %d processed = %v", rec.Code, proc.keys)
	}
}

func TestWebhookSignatureRequired(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewServer(proc, "topsecret")
	body := transitionPayload("PROJ-42", "Open", "Ready for QA")

	if rec := postWebhook(t, h, body, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: status = %d", rec.Code)
	}
	if rec := postWebhook(t, h, body, map[string]string{"X-Jira-Signature": "deadbeef"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong signature: status = %d", rec.Code)
	}
	if len(proc.keys) != 0 {
		t.Fatal("nothing should be processed without a valid signature")
	}

	good := Sign("topsecret", body)
	if rec := postWebhook(t, h, body, map[string]string{"X-Jira-Signature": good}); rec.Code != http.StatusOK {
		t.Errorf("valid signature: status = %d", rec.Code)
	}
	if rec := postWebhook(t, h, body, map[string]string{"X-Jira-Signature": "sha256=" + good}); rec.Code != http.StatusOK {
		t.Errorf("prefixed signature: status = %d", rec.Code)
	}
}

func TestWebhookProcessingFailure(t *testing.T) {
	proc := &fakeProcessor{err: &pipeline.StageError{Stage: "generate", Err: errors.New("boom")}}
	h := NewServer(proc, "")
	rec := postWebhook(t, h, transitionPayload("PROJ-42", "Open", "Ready for QA"), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != false {
		t.Errorf("response = %v", resp)
	}
}

func TestHealth(t *testing.T) {
	h := NewServer(&fakeProcessor{}, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestManualGenerate(t *testing.T) {
	proc := &fakeProcessor{res: pipeline.RunResult{
		RunID:    5,
		Records:  []testcase.ParsedTestCase{{ID: "TC-ID-001"}, {ID: "TC-ID-002"}},
		AvgScore: float64(10) * 100 / 14,
	}}
	h := NewServer(proc, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/PROJ-42/generate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(proc.keys) != 1 || proc.keys[0] != "PROJ-42" {
		t.Fatalf("processed keys = %v", proc.keys)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["run_id"] != float64(5) || resp["test_cases"] != float64(2) {
		t.Errorf("response = %v", resp)
	}
}

func TestManualGenerateBadPaths(t *testing.T) {
	h := NewServer(&fakeProcessor{}, "")
	for _, path := range []string{"/v1/tickets/", "/v1/tickets/PROJ-42", "/v1/tickets/PROJ-42/other"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/tickets/PROJ-42/generate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d", rec.Code)
	}
}

func TestParseIssueEventRejectsGarbage(t *testing.T) {
	if _, ok := ParseIssueEvent([]byte("not json")); ok {
		t.Error("garbage should not parse")
	}
	body, _ := json.Marshal(map[string]any{"webhookEvent": "jira:issue_updated"})
	if _, ok := ParseIssueEvent(body); ok {
		t.Error("payload without key should not parse")
	}
}
