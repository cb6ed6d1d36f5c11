// Package generate produces raw test-case text for a ticket through the
// Anthropic API. Transport failures are classified so only transient ones
// (timeout, rate limit, server error) are retried.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = "You are an expert test case generator following ISTQB best practices. " +
	"You design comprehensive test cases with an appropriate number of steps based on the complexity of the feature being tested. " +
	"Simple features may need only 3-4 steps, while complex workflows might require 8-10 detailed steps. " +
	"Focus on creating thorough, practical test cases that QA engineers can easily follow."

type failureClass int

const (
	failureTimeout failureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

// Generator is the surface the pipeline depends on.
type Generator interface {
	GenerateTestCases(ctx context.Context, ticketKey, description string) (string, error)
}

type TextCaller interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type AnthropicCaller struct {
	messages AnthropicMessager
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return NewAnthropicCaller(apiKey), nil
}

func NewAnthropicCaller(apiKey string) *AnthropicCaller {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCaller{messages: &c.Messages}
}

func (a *AnthropicCaller) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   2000,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.3),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// Service wraps a TextCaller with retry and input validation.
type Service struct {
	caller     TextCaller
	maxRetries int
	sleep      func(time.Duration)
}

func NewService(caller TextCaller, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Service{caller: caller, maxRetries: maxRetries, sleep: time.Sleep}
}

func (s *Service) GenerateTestCases(ctx context.Context, ticketKey, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("ticket %s has no description", ticketKey)
	}
	prompt := BuildPrompt(description)

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		raw, err := s.caller.GenerateText(ctx, prompt)
		if err != nil {
			lastErr = err
			class := classifyTransportError(err)
			if class == failureClient {
				return "", fmt.Errorf("generate for %s: %w", ticketKey, err)
			}
			if attempt < s.maxRetries {
				s.sleep(backoffDelay(attempt, class))
				continue
			}
			break
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			lastErr = errors.New("empty response")
			if attempt < s.maxRetries {
				s.sleep(backoffDelay(attempt, failureServer))
				continue
			}
			break
		}
		return raw, nil
	}
	return "", fmt.Errorf("generate for %s failed after %d attempts: %w", ticketKey, s.maxRetries, lastErr)
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int, class failureClass) time.Duration {
	base := time.Duration(attempt) * 2 * time.Second
	if class == failureRateLimit {
		base *= 2
		if base > time.Minute {
			base = time.Minute
		}
	}
	return base
}
