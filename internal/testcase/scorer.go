package testcase

import (
	"fmt"
	"regexp"
	"strings"
)

// RecommendationThreshold is the score below which a record always gets a
// recommendation, regardless of completeness.
const RecommendationThreshold = 60

var stepLinePattern = regexp.MustCompile(`(?m)^\d+\.`)

// Sections matched by case-insensitive substring against these keyword sets
// get tighter step-count expectations than the generic minimum.
var (
	simpleSections  = []string{"login", "logout", "search", "filter", "sort", "view"}
	complexSections = []string{"upload", "workflow", "wizard", "checkout", "registration", "import", "export"}
)

// criterion is one boolean quality check. Declaration order fixes the
// areas_for_improvement ordering.
type criterion struct {
	name string
	eval func(ParsedTestCase, int) bool
}

var criteria = []criterion{
	{"has_preconditions", func(tc ParsedTestCase, _ int) bool {
		return len(tc.Preconditions) > 5
	}},
	{"has_minimum_steps", func(_ ParsedTestCase, steps int) bool {
		return steps >= 3
	}},
	{"has_appropriate_step_count", func(tc ParsedTestCase, steps int) bool {
		return hasAppropriateStepCount(tc.Section, steps)
	}},
	{"has_expected_result", func(tc ParsedTestCase, _ int) bool {
		return len(tc.ExpectedResult) > 10
	}},
	{"has_input_data", func(tc ParsedTestCase, _ int) bool {
		return len(tc.InputData) > 3
	}},
	{"covers_multiple_scenarios", func(tc ParsedTestCase, _ int) bool {
		return strings.Contains(strings.ToLower(tc.InputData), "invalid") ||
			strings.Contains(strings.ToLower(tc.Notes), "edge case") ||
			strings.Contains(strings.ToLower(tc.Notes), "boundary")
	}},
	{"is_complete", func(tc ParsedTestCase, _ int) bool {
		return tc.IsComplete
	}},
}

// Score evaluates every record against the fixed criteria set and returns one
// QualityScore per record, index-aligned with the input.
func Score(records []ParsedTestCase) []QualityScore {
	scores := make([]QualityScore, 0, len(records))
	for _, tc := range records {
		scores = append(scores, scoreOne(tc))
	}
	return scores
}

func scoreOne(tc ParsedTestCase) QualityScore {
	stepCount := len(stepLinePattern.FindAllString(tc.Steps, -1))

	qs := QualityScore{TestCaseID: tc.ID}
	satisfied := 0
	for _, c := range criteria {
		if c.eval(tc, stepCount) {
			satisfied++
		} else {
			qs.AreasForImprovement = append(qs.AreasForImprovement, c.name)
		}
	}
	qs.Score = float64(satisfied) * 100 / float64(len(criteria))

	if !tc.IsComplete {
		qs.IncompleteFields = missingRequiredFields(tc)
	}
	return qs
}

// hasAppropriateStepCount applies the section-sensitive heuristic: simple
// flows should stay short, complex flows need depth, everything else only
// needs the generic minimum.
func hasAppropriateStepCount(section string, stepCount int) bool {
	lower := strings.ToLower(section)
	for _, kw := range simpleSections {
		if strings.Contains(lower, kw) {
			return stepCount >= 3 && stepCount <= 6
		}
	}
	for _, kw := range complexSections {
		if strings.Contains(lower, kw) {
			return stepCount >= 5
		}
	}
	return stepCount >= 3
}

// Recommend produces a human-readable improvement note for a record that
// scored below the threshold or is missing required fields. The second
// return is false when the record needs no recommendation.
func Recommend(qs QualityScore) (string, bool) {
	if qs.Score >= RecommendationThreshold && len(qs.IncompleteFields) == 0 {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Test Case %s needs improvement in:", qs.TestCaseID)

	if len(qs.IncompleteFields) > 0 {
		b.WriteString("\n- Missing fields that need completion:")
		for _, field := range qs.IncompleteFields {
			fmt.Fprintf(&b, "\n  * %s", humanize(field))
		}
	}

	if len(qs.AreasForImprovement) > 0 {
		b.WriteString("\n- Areas for improvement:")
		for _, area := range qs.AreasForImprovement {
			// Completeness is already covered by the missing-fields list.
			if area == "is_complete" {
				continue
			}
			fmt.Fprintf(&b, "\n  * %s", humanize(strings.TrimPrefix(area, "has_")))
		}
	}
	return b.String(), true
}

// Recommendations collects the recommendation text for every score that
// warrants one, in input order.
func Recommendations(scores []QualityScore) []string {
	var out []string
	for _, qs := range scores {
		if text, ok := Recommend(qs); ok {
			out = append(out, text)
		}
	}
	return out
}

func humanize(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}
