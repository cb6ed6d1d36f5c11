package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCaller struct {
	responses []string
	errs      []error
	prompts   []string
	i         int
}

func (f *fakeCaller) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	idx := f.i
	f.i++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", nil
}

func newTestService(caller *fakeCaller) *Service {
	s := NewService(caller, 3)
	s.sleep = func(time.Duration) {}
	return s
}

func TestGenerateTestCases(t *testing.T) {
	caller := &fakeCaller{responses: []string{"Test Case ID-001:\nSection: Login\n..."}}
	s := newTestService(caller)

	out, err := s.GenerateTestCases(context.Background(), "PROJ-42", "As a user I want to log in.")
	if err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}
	if !strings.HasPrefix(out, "Test Case ID-001:") {
		t.Errorf("output = %q", out)
	}
	if len(caller.prompts) != 1 || !strings.Contains(caller.prompts[0], "As a user I want to log in.") {
		t.Errorf("prompt did not embed the description")
	}
}

func TestGenerateRejectsEmptyDescription(t *testing.T) {
	caller := &fakeCaller{}
	s := newTestService(caller)
	if _, err := s.GenerateTestCases(context.Background(), "PROJ-42", "   "); err == nil {
		t.Fatal("expected error for empty description")
	}
	if len(caller.prompts) != 0 {
		t.Fatal("no network call should happen for empty input")
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	caller := &fakeCaller{
		errs:      []error{errors.New("status code: 500"), errors.New("status code: 503")},
		responses: []string{"", "", "Test Case ID-001:\nSection: A"},
	}
	s := newTestService(caller)
	out, err := s.GenerateTestCases(context.Background(), "PROJ-42", "desc")
	if err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}
	if caller.i != 3 {
		t.Errorf("attempts = %d, want 3", caller.i)
	}
	if out == "" {
		t.Error("expected text after retries")
	}
}

func TestGenerateStopsOnClientError(t *testing.T) {
	caller := &fakeCaller{errs: []error{errors.New("status code: 401 unauthorized")}}
	s := newTestService(caller)
	if _, err := s.GenerateTestCases(context.Background(), "PROJ-42", "desc"); err == nil {
		t.Fatal("expected error")
	}
	if caller.i != 1 {
		t.Errorf("attempts = %d, client errors should not retry", caller.i)
	}
}

func TestGenerateGivesUpAfterRetries(t *testing.T) {
	caller := &fakeCaller{errs: []error{
		errors.New("status code: 500"),
		errors.New("status code: 500"),
		errors.New("status code: 500"),
	}}
	s := newTestService(caller)
	_, err := s.GenerateTestCases(context.Background(), "PROJ-42", "desc")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v", err)
	}
}

func TestGenerateRetriesEmptyResponse(t *testing.T) {
	caller := &fakeCaller{responses: []string{"  ", "Test Case ID-001:\nSection: A"}}
	s := newTestService(caller)
	out, err := s.GenerateTestCases(context.Background(), "PROJ-42", "desc")
	if err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}
	if caller.i != 2 || out == "" {
		t.Errorf("attempts = %d out = %q", caller.i, out)
	}
}

func TestClassifyTransportError(t *testing.T) {
	cases := []struct {
		err  error
		want failureClass
	}{
		{context.DeadlineExceeded, failureTimeout},
		{errors.New("status code: 429 too many requests"), failureRateLimit},
		{errors.New("status code: 500"), failureServer},
		{errors.New("status code: 403"), failureClient},
		{errors.New("connection reset by peer"), failureServer},
	}
	for _, c := range cases {
		if got := classifyTransportError(c.err); got != c.want {
			t.Errorf("classifyTransportError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestBuildPromptCarriesFormatContract(t *testing.T) {
	p := BuildPrompt("Export the table as CSV.")
	for _, want := range []string{
		"Test Case ID-001:",
		"Section:",
		"Preconditions:",
		"Steps:",
		"Expected Result:",
		"Export the table as CSV.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
