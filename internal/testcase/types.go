package testcase

const (
	// IDPrefix is prepended to every parsed test-case label.
	IDPrefix = "TC"

	// DefaultSection is used when a block carries no Section label.
	DefaultSection = "General"
)

// ParsedTestCase is one structured test case extracted from generated text.
// Field order matches the spreadsheet row layout downstream.
type ParsedTestCase struct {
	ID             string `json:"id"`
	TicketKey      string `json:"ticket_key"`
	Section        string `json:"section"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	InputData      string `json:"input_data"`
	Notes          string `json:"notes"`
	IsComplete     bool   `json:"is_complete"`
}

// QualityScore pairs with the ParsedTestCase at the same position.
type QualityScore struct {
	TestCaseID          string   `json:"test_case_id"`
	Score               float64  `json:"score"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	IncompleteFields    []string `json:"incomplete_fields"`
}

// ExportRecord is a ParsedTestCase with internal tracking fields removed,
// suitable for serialization at the export boundary.
type ExportRecord struct {
	ID             string `json:"id"`
	TicketKey      string `json:"ticket_key"`
	Section        string `json:"section"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	InputData      string `json:"input_data"`
	Notes          string `json:"notes"`
}

// ParseStats reports what the extractor recognized versus what it returned.
// Skipped > 0 means individual blocks were dropped without aborting the call.
type ParseStats struct {
	BlocksFound int
	Parsed      int
	Skipped     int
	Incomplete  int
}

// CleanForExport strips the completeness flag from each record.
func CleanForExport(records []ParsedTestCase) []ExportRecord {
	out := make([]ExportRecord, 0, len(records))
	for _, tc := range records {
		out = append(out, ExportRecord{
			ID:             tc.ID,
			TicketKey:      tc.TicketKey,
			Section:        tc.Section,
			Preconditions:  tc.Preconditions,
			Steps:          tc.Steps,
			ExpectedResult: tc.ExpectedResult,
			InputData:      tc.InputData,
			Notes:          tc.Notes,
		})
	}
	return out
}

// Partition splits records by completeness, preserving order within each half.
func Partition(records []ParsedTestCase) (complete, incomplete []ParsedTestCase) {
	for _, tc := range records {
		if tc.IsComplete {
			complete = append(complete, tc)
		} else {
			incomplete = append(incomplete, tc)
		}
	}
	return complete, incomplete
}
