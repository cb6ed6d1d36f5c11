package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nidralux/caseforge/internal/testcase"
)

func sampleBatch() ([]testcase.ParsedTestCase, []testcase.QualityScore) {
	records := []testcase.ParsedTestCase{{
		ID:             "TC-ID-001",
		TicketKey:      "PROJ-42",
		Section:        "Login",
		Preconditions:  "User account exists.",
		Steps:          "1. Open the login page\n2. Enter credentials\n3. Submit",
		ExpectedResult: "Dashboard loads.",
		InputData:      "username=qa.user",
		Notes:          "Happy path.",
		IsComplete:     true,
	}}
	scores := []testcase.QualityScore{{TestCaseID: "TC-ID-001", Score: float64(5) * 100 / 7}}
	return records, scores
}

func TestBuildRows(t *testing.T) {
	records, scores := sampleBatch()
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	rows := BuildRows(ts, "PROJ-42", records, scores)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if len(row) != len(Header) {
		t.Fatalf("row width = %d, want %d", len(row), len(Header))
	}
	if row[0] != "2026-03-14 09:30:00" {
		t.Errorf("timestamp = %q", row[0])
	}
	if row[1] != "PROJ-42" || row[2] != "TC-ID-001" || row[3] != "Login" {
		t.Errorf("identity columns = %v", row[:4])
	}
	if row[9] != "71%" {
		t.Errorf("score column = %q", row[9])
	}
}

func TestBuildRowsMissingScores(t *testing.T) {
	records, _ := sampleBatch()
	rows := BuildRows(time.Now(), "PROJ-42", records, nil)
	if rows[0][9] != "" {
		t.Errorf("score column should be empty, got %q", rows[0][9])
	}
}

func TestAppendWritesHeaderOnEmptySheet(t *testing.T) {
	var gotPaths []string
	var appendBody struct {
		Values [][]string `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		gotPaths = append(gotPaths, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{})
		case strings.Contains(r.URL.Path, ":append"):
			_ = json.NewDecoder(r.Body).Decode(&appendBody)
			_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRange": "Sheet1!A2:J2"}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{})
		}
	}))
	defer srv.Close()

	c := NewClient("sheet1", "tok")
	c.baseURL = srv.URL

	records, scores := sampleBatch()
	if err := c.AppendTestCases(context.Background(), "PROJ-42", records, scores); err != nil {
		t.Fatalf("AppendTestCases: %v", err)
	}

	if len(gotPaths) != 3 {
		t.Fatalf("requests = %v, want probe, header write, append", gotPaths)
	}
	if !strings.HasPrefix(gotPaths[1], "PUT ") {
		t.Errorf("second request should write headers: %v", gotPaths)
	}
	if len(appendBody.Values) != 1 || appendBody.Values[0][2] != "TC-ID-001" {
		t.Errorf("append payload = %v", appendBody.Values)
	}
}

func TestAppendSkipsHeaderWhenPresent(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]any{"values": [][]string{Header}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := NewClient("sheet1", "tok")
	c.baseURL = srv.URL

	records, scores := sampleBatch()
	if err := c.AppendTestCases(context.Background(), "PROJ-42", records, scores); err != nil {
		t.Fatalf("AppendTestCases: %v", err)
	}
	if len(methods) != 2 || methods[1] != http.MethodPost {
		t.Fatalf("methods = %v, want probe then append only", methods)
	}
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	c := NewClient("sheet1", "tok")
	c.baseURL = "http://example.invalid"
	if err := c.AppendTestCases(context.Background(), "PROJ-42", nil, nil); err != nil {
		t.Fatalf("empty batch should not touch the network: %v", err)
	}
}

func TestEnsureTicketSheet(t *testing.T) {
	created := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sheets": []map[string]any{
					{"properties": map[string]any{"title": "Sheet1"}},
				},
			})
			return
		}
		created = true
		var body struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Requests) != 1 || body.Requests[0].AddSheet.Properties.Title != "PROJ-42" {
			t.Errorf("batchUpdate body = %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := NewClient("sheet1", "tok")
	c.baseURL = srv.URL
	if err := c.EnsureTicketSheet(context.Background(), "PROJ-42"); err != nil {
		t.Fatalf("EnsureTicketSheet: %v", err)
	}
	if !created {
		t.Fatal("expected addSheet request")
	}
}

func TestEnsureTicketSheetAlreadyExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s request", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sheets": []map[string]any{
				{"properties": map[string]any{"title": "PROJ-42"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("sheet1", "tok")
	c.baseURL = srv.URL
	if err := c.EnsureTicketSheet(context.Background(), "PROJ-42"); err != nil {
		t.Fatalf("EnsureTicketSheet: %v", err)
	}
}

func TestCommentBody(t *testing.T) {
	c := NewClient("abc123", "tok")
	body := CommentBody(c.SpreadsheetURL())
	if !strings.Contains(body, "https://docs.google.com/spreadsheets/d/abc123") {
		t.Fatalf("comment = %q", body)
	}
}
