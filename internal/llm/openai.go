package llm

import (
	"context"
	"errors"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/xannhsux/dsci560-hikebot/internal/metrics"
)

// OpenAI is the langchaingo-backed Client for OpenAI-compatible endpoints.
type OpenAI struct {
	llm     *openai.LLM
	timeout time.Duration
}

// NewOpenAI creates a client. baseURL may be empty for the default endpoint;
// defaultModel is used when a request doesn't name one.
func NewOpenAI(token, baseURL, defaultModel string, timeout time.Duration) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(defaultModel),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAI{llm: model, timeout: timeout}, nil
}

// Complete runs one system+user exchange under the client timeout and
// returns the raw completion text.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, req.System),
		llms.TextParts(schema.ChatMessageTypeHuman, req.User),
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}
	if req.JSONOnly {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := o.llm.GenerateContent(ctx, content, callOpts...)
	metrics.LLMRequestDuration.WithLabelValues(req.Kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMErrors.WithLabelValues(req.Kind).Inc()
		return "", err
	}
	if len(resp.Choices) == 0 {
		metrics.LLMErrors.WithLabelValues(req.Kind).Inc()
		return "", errors.New("llm: empty response")
	}

	return StripFences(resp.Choices[0].Content), nil
}
