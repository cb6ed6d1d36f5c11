// Package sheets appends scored test cases to a Google spreadsheet through
// the Sheets v4 values REST API. The row layout is fixed; BuildRows is pure
// so the layout is testable without the network.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nidralux/caseforge/internal/testcase"
)

const defaultBaseURL = "https://sheets.googleapis.com"

// Header is the canonical first row. Probing A1:K1 against Header[0] decides
// whether the sheet still needs it.
var Header = []string{
	"Timestamp", "Ticket", "Test Case ID", "Section/Module",
	"Preconditions", "Steps", "Expected Result", "Input Data",
	"Notes", "Quality Score",
}

type Client struct {
	baseURL       string
	spreadsheetID string
	token         string
	http          *http.Client
	now           func() time.Time
}

func NewClient(spreadsheetID, token string) *Client {
	return &Client{
		baseURL:       defaultBaseURL,
		spreadsheetID: spreadsheetID,
		token:         token,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

func (c *Client) SpreadsheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + c.spreadsheetID
}

// AppendTestCases writes one row per record to the default sheet, adding the
// header row first when the sheet does not carry it yet.
func (c *Client) AppendTestCases(ctx context.Context, ticketKey string, records []testcase.ParsedTestCase, scores []testcase.QualityScore) error {
	if len(records) == 0 {
		return nil
	}
	needed, err := c.headersNeeded(ctx)
	if err != nil {
		return fmt.Errorf("probe headers: %w", err)
	}
	if needed {
		if err := c.writeHeader(ctx); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}

	rows := BuildRows(c.now(), ticketKey, records, scores)
	body, _ := json.Marshal(map[string]any{"values": rows})
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		c.spreadsheetID, url.PathEscape("Sheet1!A2"))
	if _, err := c.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("append rows for %s: %w", ticketKey, err)
	}
	return nil
}

// EnsureTicketSheet creates a per-ticket tab when it does not exist yet.
func (c *Client) EnsureTicketSheet(ctx context.Context, ticketKey string) error {
	blob, err := c.do(ctx, http.MethodGet, "/v4/spreadsheets/"+c.spreadsheetID+"?fields=sheets.properties.title", nil)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	var meta struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal(blob, &meta); err != nil {
		return fmt.Errorf("decode sheet list: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties.Title == ticketKey {
			return nil
		}
	}

	body, _ := json.Marshal(map[string]any{
		"requests": []map[string]any{
			{"addSheet": map[string]any{"properties": map[string]any{"title": ticketKey}}},
		},
	})
	if _, err := c.do(ctx, http.MethodPost, "/v4/spreadsheets/"+c.spreadsheetID+":batchUpdate", body); err != nil {
		return fmt.Errorf("add sheet %s: %w", ticketKey, err)
	}
	return nil
}

func (c *Client) headersNeeded(ctx context.Context) (bool, error) {
	path := "/v4/spreadsheets/" + c.spreadsheetID + "/values/" + url.PathEscape("Sheet1!A1:K1")
	blob, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	var resp struct {
		Values [][]string `json:"values"`
	}
	if err := json.Unmarshal(blob, &resp); err != nil {
		return false, err
	}
	return len(resp.Values) == 0 || len(resp.Values[0]) == 0 || resp.Values[0][0] != Header[0], nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	body, _ := json.Marshal(map[string]any{"values": [][]string{Header}})
	path := "/v4/spreadsheets/" + c.spreadsheetID + "/values/" + url.PathEscape("Sheet1!A1") + "?valueInputOption=RAW"
	_, err := c.do(ctx, http.MethodPut, path, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return blob, fmt.Errorf("%s %s failed status=%d body=%s", method, path, resp.StatusCode, string(blob))
	}
	return blob, nil
}

// BuildRows renders the spreadsheet rows for a batch. Scores align with
// records by index; a shorter score slice leaves the score column empty for
// the tail.
func BuildRows(ts time.Time, ticketKey string, records []testcase.ParsedTestCase, scores []testcase.QualityScore) [][]string {
	stamp := ts.Format("2006-01-02 15:04:05")
	rows := make([][]string, 0, len(records))
	for i, tc := range records {
		score := ""
		if i < len(scores) {
			score = fmt.Sprintf("%.0f%%", scores[i].Score)
		}
		rows = append(rows, []string{
			stamp,
			ticketKey,
			tc.ID,
			tc.Section,
			tc.Preconditions,
			tc.Steps,
			tc.ExpectedResult,
			tc.InputData,
			tc.Notes,
			score,
		})
	}
	return rows
}

// CommentBody is the Jira comment posted after a successful upload.
func CommentBody(spreadsheetURL string) string {
	return strings.TrimSpace(fmt.Sprintf(
		"Test cases have been generated and stored in the [Test Cases spreadsheet|%s].", spreadsheetURL))
}
