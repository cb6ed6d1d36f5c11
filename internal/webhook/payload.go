package webhook

import (
	"encoding/json"
	"strings"
)

// IssueEvent is the distilled form of an issue webhook payload.
type IssueEvent struct {
	Key        string
	FromStatus string
	ToStatus   string
}

var readyForQAVariations = []string{
	"ready for qa",
	"ready 4 qa",
	"ready for quality assurance",
}

type payload struct {
	WebhookEvent string `json:"webhookEvent"`
	Issue        struct {
		Key    string `json:"key"`
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	} `json:"issue"`
	Changelog struct {
		Items []struct {
			Field      string `json:"field"`
			FromString string `json:"fromString"`
			ToString   string `json:"toString"`
		} `json:"items"`
	} `json:"changelog"`
}

// ParseIssueEvent extracts the issue key and status movement from a raw
// webhook body. It returns false for non-issue events, payloads without a
// key, and updates that carry no status information. When the changelog has
// no status item the issue's current status stands in for the destination.
func ParseIssueEvent(body []byte) (IssueEvent, bool) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return IssueEvent{}, false
	}
	if !strings.Contains(p.WebhookEvent, "issue") {
		return IssueEvent{}, false
	}
	key := strings.TrimSpace(p.Issue.Key)
	if key == "" {
		return IssueEvent{}, false
	}

	ev := IssueEvent{Key: key}
	for _, item := range p.Changelog.Items {
		if item.Field == "status" {
			ev.FromStatus = item.FromString
			ev.ToStatus = item.ToString
			break
		}
	}
	if ev.ToStatus == "" {
		current := strings.TrimSpace(p.Issue.Fields.Status.Name)
		if current == "" {
			return IssueEvent{}, false
		}
		ev.ToStatus = current
	}
	return ev, true
}

// IsReadyForQA reports whether a status name means the ticket entered QA.
// Phrasing differs between projects, so known variations match by substring.
func IsReadyForQA(status string) bool {
	lower := strings.ToLower(status)
	for _, v := range readyForQAVariations {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}
