// Package report renders a QA review report for a batch of scored test
// cases: markdown for humans and tooling, styled HTML via goldmark, and a
// Chromium-rendered PDF for reviewer hand-off.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/nidralux/caseforge/internal/testcase"
)

type Input struct {
	TicketKey   string
	GeneratedAt time.Time
	Records     []testcase.ParsedTestCase
	Scores      []testcase.QualityScore
	Stats       testcase.ParseStats
}

// BuildMarkdown renders the review report. Scores align with records by
// index.
func BuildMarkdown(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Test Case Review Report\n\n")
	fmt.Fprintf(&b, "- Ticket: %s\n", in.TicketKey)
	fmt.Fprintf(&b, "- Date: %s\n\n", in.GeneratedAt.Format(time.RFC3339))

	complete, incomplete := testcase.Partition(in.Records)

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "- Blocks recognized: %d\n", in.Stats.BlocksFound)
	fmt.Fprintf(&b, "- Test cases parsed: %d\n", len(in.Records))
	if in.Stats.Skipped > 0 {
		fmt.Fprintf(&b, "- Blocks skipped: %d\n", in.Stats.Skipped)
	}
	fmt.Fprintf(&b, "- Complete: %d\n", len(complete))
	fmt.Fprintf(&b, "- Needing completion: %d\n", len(incomplete))
	fmt.Fprintf(&b, "- Average score: %.0f%%\n\n", averageScore(in.Scores))

	fmt.Fprintf(&b, "## Scores\n\n")
	fmt.Fprintf(&b, "| Test Case | Section | Score | Complete | Areas for Improvement |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for i, tc := range in.Records {
		score, areas := "-", "-"
		if i < len(in.Scores) {
			score = fmt.Sprintf("%.0f%%", in.Scores[i].Score)
			if len(in.Scores[i].AreasForImprovement) > 0 {
				areas = strings.Join(in.Scores[i].AreasForImprovement, ", ")
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", tc.ID, tc.Section, score, yesNo(tc.IsComplete), areas)
	}
	b.WriteString("\n")

	if recs := testcase.Recommendations(in.Scores); len(recs) > 0 {
		fmt.Fprintf(&b, "## Recommendations\n\n")
		for _, rec := range recs {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", rec)
		}
	}

	fmt.Fprintf(&b, "## Test Cases\n\n")
	for _, tc := range in.Records {
		fmt.Fprintf(&b, "### %s — %s\n\n", tc.ID, tc.Section)
		writeField(&b, "Preconditions", tc.Preconditions)
		writeField(&b, "Steps", tc.Steps)
		writeField(&b, "Expected Result", tc.ExpectedResult)
		writeField(&b, "Input Data", tc.InputData)
		writeField(&b, "Notes", tc.Notes)
	}

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", label)
	for _, line := range strings.Split(value, "\n") {
		fmt.Fprintf(b, "%s\n", line)
	}
	b.WriteString("\n")
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

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
