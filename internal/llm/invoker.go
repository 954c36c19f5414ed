package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultPrimaryModel is the high-quality model tried first.
	DefaultPrimaryModel = openai.GPT4o
	// DefaultFallbackModel is the cheaper model retried on primary failure.
	DefaultFallbackModel = openai.GPT4oMini

	// modelTimeout bounds a single model attempt. A call that neither
	// completes nor errors inside this budget is abandoned.
	modelTimeout = 45 * time.Second

	// maxResponseTokens bounds the model's output size. A syllabus worth of
	// assignments fits comfortably; open-ended generation does not happen here.
	maxResponseTokens = 2048
)

// Invoker issues extraction requests against a primary model and retries once
// against a fallback. It is constructed with an injected client rather than a
// process-wide singleton so tests can point it at a stub server.
type Invoker struct {
	client        *openai.Client
	primaryModel  string
	fallbackModel string
	timeout       time.Duration
}

// NewInvoker builds an Invoker from an API key. Empty model names select the
// defaults.
func NewInvoker(apiKey, primaryModel, fallbackModel string) *Invoker {
	return NewInvokerWithClient(openai.NewClient(apiKey), primaryModel, fallbackModel)
}

// NewInvokerWithClient builds an Invoker around an existing client.
func NewInvokerWithClient(client *openai.Client, primaryModel, fallbackModel string) *Invoker {
	if primaryModel == "" {
		primaryModel = DefaultPrimaryModel
	}
	if fallbackModel == "" {
		fallbackModel = DefaultFallbackModel
	}
	return &Invoker{
		client:        client,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		timeout:       modelTimeout,
	}
}

// Invoke sends the prompt to the primary model and, if that attempt errors or
// times out, once to the fallback model. It returns the raw model text, or an
// error when both attempts fail. Total attempts per call ≤ 2.
func (iv *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	raw, err := iv.complete(ctx, iv.primaryModel, prompt)
	if err == nil {
		return raw, nil
	}
	log.Printf("llm: primary model %s failed, retrying with %s: %v", iv.primaryModel, iv.fallbackModel, err)

	raw, err = iv.complete(ctx, iv.fallbackModel, prompt)
	if err != nil {
		return "", fmt.Errorf("fallback model %s: %w", iv.fallbackModel, err)
	}
	return raw, nil
}

// complete is a single bounded model attempt. Low temperature and a JSON
// response format: this is structured extraction, not open generation.
func (iv *Invoker) complete(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	resp, err := iv.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.1,
		MaxTokens:      maxResponseTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", fmt.Errorf("%s error: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Pipeline is the full extraction sequence: prompt build, model call,
// response normalization. Stateless between calls.
type Pipeline struct {
	invoker *Invoker
}

func NewPipeline(invoker *Invoker) *Pipeline {
	return &Pipeline{invoker: invoker}
}

// ParseAssignments turns syllabus text into a normalized assignment list.
// Model unavailability is absorbed: both attempts failing yields the empty
// result, not an error. A degraded "no assignments found" outcome beats an
// error page for a non-critical extraction feature.
func (p *Pipeline) ParseAssignments(ctx context.Context, text string) (ExtractionResult, error) {
	prompt := BuildPrompt(text)

	raw, err := p.invoker.Invoke(ctx, prompt)
	if err != nil {
		log.Printf("llm: both model attempts failed, returning empty result: %v", err)
		return EmptyResult(), nil
	}
	return Normalize(raw), nil
}
