package testcase

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	markdownHeaderPattern = regexp.MustCompile(`#{1,6}\s+`)
	boldEmphasisPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicEmphasisPattern = regexp.MustCompile(`\*(.*?)\*`)
	excessNewlinePattern  = regexp.MustCompile(`\n{3,}`)
	numberedLinePattern   = regexp.MustCompile(`^\d+\.`)
	numberedListAnywhere  = regexp.MustCompile(`(?m)^\s*\d+\.`)

	primaryAnchorPattern   = regexp.MustCompile(`Test Case ([\w-]+):`)
	secondaryAnchorPattern = regexp.MustCompile(`(ID-\d+):`)

	sectionPattern = regexp.MustCompile(`Section:\s*([^\n]*)`)

	embeddedExpectedPattern = regexp.MustCompile(`\nExpected Result:|\n[Ee]xpected [Rr]esult:`)
)

// fieldRule pairs a label pattern with the boundary that ends the field.
// Rules are evaluated in order; the first one yielding non-empty content wins.
type fieldRule struct {
	label    *regexp.Regexp
	boundary *regexp.Regexp
}

var (
	preconditionsRules = []fieldRule{
		{regexp.MustCompile(`Preconditions?:\s*`), regexp.MustCompile(`\nSteps|\n[Ss]teps:`)},
	}
	stepsRules = []fieldRule{
		{regexp.MustCompile(`Steps?:`), regexp.MustCompile(`Expected Result|[Ee]xpected [Rr]esult:`)},
		{regexp.MustCompile(`Steps?:`), regexp.MustCompile(`\nExpected|\n[Ee]xpected:`)},
	}
	expectedResultRules = []fieldRule{
		{regexp.MustCompile(`Expected Result:?\s*`), regexp.MustCompile(`\nInput|\n[Ii]nput:`)},
		{regexp.MustCompile(`Expected Result:?\s*`), regexp.MustCompile(`\nInput Data|\n[Ii]nput [Dd]ata:`)},
	}
	inputDataRules = []fieldRule{
		{regexp.MustCompile(`Input:?\s*`), regexp.MustCompile(`\nNotes|\n[Nn]otes:`)},
		{regexp.MustCompile(`Input Data:?\s*`), regexp.MustCompile(`\nNotes|\n[Nn]otes:`)},
	}
	notesRules = []fieldRule{
		{regexp.MustCompile(`Notes:?\s*`), nil},
	}
)

// block is one contiguous span of raw text covering a single candidate test
// case before field extraction.
type block struct {
	rawID string
	body  string
}

// Extractor converts free-form generated text into ParsedTestCase records.
// The zero value is usable; Warnf, when set, receives warning-level signals
// about degraded extraction (no anchors matched, skipped blocks, incomplete
// records). Extractor holds no state across calls.
type Extractor struct {
	Warnf func(format string, args ...any)
}

func (e *Extractor) warnf(format string, args ...any) {
	if e.Warnf != nil {
		e.Warnf(format, args...)
	}
}

// Parse segments raw generated text into test-case records. It never fails:
// malformed input yields fewer records, and text with no recognizable anchors
// yields none.
func (e *Extractor) Parse(raw, ticketKey string) []ParsedTestCase {
	records, _ := e.ParseWithStats(raw, ticketKey)
	return records
}

// ParseWithStats is Parse plus counters that expose the difference between
// blocks recognized and records returned.
func (e *Extractor) ParseWithStats(raw, ticketKey string) ([]ParsedTestCase, ParseStats) {
	stats := ParseStats{}

	normalized := markdownHeaderPattern.ReplaceAllString(raw, "")

	blocks := splitBlocks(normalized, primaryAnchorPattern)
	if len(blocks) == 0 {
		e.warnf("no test cases found with primary anchor for ticket %s, retrying with lenient pattern", ticketKey)
		blocks = splitBlocks(normalized, secondaryAnchorPattern)
	}
	if len(blocks) == 0 {
		e.warnf("failed to parse any test cases from text for ticket %s", ticketKey)
		return nil, stats
	}
	stats.BlocksFound = len(blocks)

	records := make([]ParsedTestCase, 0, len(blocks))
	for i, b := range blocks {
		tc, err := e.parseBlock(b, i+1, ticketKey)
		if err != nil {
			e.warnf("error parsing test case %d for ticket %s: %v", i+1, ticketKey, err)
			stats.Skipped++
			continue
		}
		if !tc.IsComplete {
			stats.Incomplete++
			e.warnf("test case %s for ticket %s is missing required fields: %s",
				tc.ID, ticketKey, strings.Join(missingRequiredFields(tc), ", "))
		}
		records = append(records, tc)
		stats.Parsed++
	}
	return records, stats
}

// splitBlocks locates every anchor match and carves out non-overlapping
// blocks, each running to the next anchor or end of text.
func splitBlocks(text string, anchor *regexp.Regexp) []block {
	matches := anchor.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]block, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		blocks = append(blocks, block{
			rawID: text[m[2]:m[3]],
			body:  text[m[1]:end],
		})
	}
	return blocks
}

// parseBlock extracts every field from a single block. A panic from an
// unexpected structure is converted to an error so one bad block cannot
// abort the batch.
func (e *Extractor) parseBlock(b block, position int, ticketKey string) (tc ParsedTestCase, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected block structure: %v", r)
		}
	}()

	tc = ParsedTestCase{
		TicketKey: ticketKey,
		Section:   DefaultSection,
	}

	if label := strings.TrimSpace(b.rawID); label != "" {
		tc.ID = IDPrefix + "-" + label
	} else {
		tc.ID = fmt.Sprintf("%s-%03d", IDPrefix, position)
	}

	content := excessNewlinePattern.ReplaceAllString(strings.TrimSpace(b.body), "\n\n")

	if m := sectionPattern.FindStringSubmatch(content); m != nil && strings.TrimSpace(m[1]) != "" {
		tc.Section = strings.TrimSpace(m[1])
	}

	if v := extractField(content, preconditionsRules); v != "" {
		tc.Preconditions = cleanFieldContent(v)
	}

	rawSteps := extractField(content, stepsRules)
	tc.Steps = formatSteps(rawSteps)
	if tc.Steps == "" {
		rawSteps, tc = correctStepsInPreconditions(tc, content)
	}

	if v := extractField(content, expectedResultRules); v != "" {
		tc.ExpectedResult = cleanFieldContent(v)
	}

	if v := extractField(content, inputDataRules); v != "" {
		tc.InputData = cleanFieldContent(v)
	}

	if v := extractField(content, notesRules); v != "" {
		tc.Notes = cleanFieldContent(v)
	}

	tc = recoverEmbeddedExpectedResult(tc, rawSteps)

	tc.IsComplete = len(missingRequiredFields(tc)) == 0
	return tc, nil
}

// extractField applies the ordered rules and returns the first non-empty
// capture: text after the label, cut at the first boundary match.
func extractField(content string, rules []fieldRule) string {
	for _, rule := range rules {
		loc := rule.label.FindStringIndex(content)
		if loc == nil {
			continue
		}
		tail := content[loc[1]:]
		if rule.boundary != nil {
			if b := rule.boundary.FindStringIndex(tail); b != nil {
				tail = tail[:b[0]]
			}
		}
		if strings.TrimSpace(tail) != "" {
			return tail
		}
	}
	return ""
}

// correctStepsInPreconditions handles the known generative-text quirk where
// the model nests the numbered step list under the Preconditions label. If
// the primary extraction produced no steps but the block still contains a
// Steps token followed by a numbered list, the step text is carved out and
// the preconditions are truncated at that token. Returns the carved raw
// step text alongside the updated record.
func correctStepsInPreconditions(tc ParsedTestCase, content string) (string, ParsedTestCase) {
	if !strings.Contains(content, "Steps:") {
		return "", tc
	}
	parts := strings.SplitN(content, "Steps:", 2)
	if len(parts) < 2 {
		return "", tc
	}
	potential := strings.TrimSpace(parts[1])
	if !numberedListAnywhere.MatchString(potential) {
		return "", tc
	}
	stepsText := strings.TrimSpace(strings.SplitN(potential, "Expected Result:", 2)[0])
	tc.Steps = formatSteps(stepsText)
	if tc.Preconditions != "" && strings.Contains(tc.Preconditions, "Steps:") {
		tc.Preconditions = strings.TrimSpace(strings.SplitN(tc.Preconditions, "Steps:", 2)[0])
	}
	return stepsText, tc
}

// recoverEmbeddedExpectedResult handles the inverse quirk: the Expected
// Result label never appeared at field level but is buried inside the step
// text. Splitting there fixes both fields. The split runs over the raw
// captured text because renumbering would hide a line-leading marker behind
// an ordinal prefix.
func recoverEmbeddedExpectedResult(tc ParsedTestCase, rawSteps string) ParsedTestCase {
	if tc.ExpectedResult != "" || tc.Steps == "" {
		return tc
	}
	parts := embeddedExpectedPattern.Split(rawSteps, -1)
	if len(parts) < 2 {
		return tc
	}
	tc.Steps = formatSteps(parts[0])
	tc.ExpectedResult = cleanFieldContent(parts[1])
	return tc
}

// cleanFieldContent strips markdown noise from a field: header markers are
// removed, emphasis markers are unwrapped, and runs of 3+ newlines collapse
// to a paragraph break.
func cleanFieldContent(content string) string {
	if content == "" {
		return ""
	}
	content = markdownHeaderPattern.ReplaceAllString(content, "")
	content = boldEmphasisPattern.ReplaceAllString(content, "$1")
	content = italicEmphasisPattern.ReplaceAllString(content, "$1")
	content = excessNewlinePattern.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// formatSteps re-emits each non-empty step line with an ordinal prefix.
// Lines already starting with a numeral and period are kept verbatim; the
// rest are assigned the next counter value over emitted lines.
func formatSteps(stepsText string) string {
	if stepsText == "" {
		return ""
	}
	stepsText = cleanFieldContent(stepsText)

	var formatted []string
	for _, line := range strings.Split(stepsText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if numberedLinePattern.MatchString(line) {
			formatted = append(formatted, line)
		} else {
			formatted = append(formatted, fmt.Sprintf("%d. %s", len(formatted)+1, line))
		}
	}
	return strings.Join(formatted, "\n")
}

func missingRequiredFields(tc ParsedTestCase) []string {
	var missing []string
	if tc.Preconditions == "" {
		missing = append(missing, "preconditions")
	}
	if tc.Steps == "" {
		missing = append(missing, "steps")
	}
	if tc.ExpectedResult == "" {
		missing = append(missing, "expected_result")
	}
	return missing
}
