package invoker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIInvoker performs stage invocations against the OpenAI chat API.
type OpenAIInvoker struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// OpenAIOption configures an OpenAIInvoker.
type OpenAIOption func(*OpenAIInvoker)

// WithRateLimit caps invocations at rps requests per second with the given
// burst. Useful when several runs share one API key.
func WithRateLimit(rps float64, burst int) OpenAIOption {
	return func(o *OpenAIInvoker) {
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewOpenAIInvoker builds an invoker from the environment.
func NewOpenAIInvoker(opts ...OpenAIOption) (*OpenAIInvoker, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, ErrMissingAPIKey
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	inv := &OpenAIInvoker{
		client: openai.NewClient(apiKey),
		model:  model,
	}
	for _, opt := range opts {
		opt(inv)
	}

	slog.Info("Initializing OpenAI invoker", "model", model)
	return inv, nil
}

// Invoke implements the Invoker interface. Photos go as image parts, audio
// and structured context go as text; the response is requested as a JSON
// object so the schema registry can decode it.
func (o *OpenAIInvoker) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, NewInvocationError(req.Stage, false, err)
		}
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Instruction},
	}
	if len(req.Context) > 0 {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: "Context:\n" + string(req.Context),
		})
	}
	if req.RepairHint != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: "Your previous response did not match the required shape. " + req.RepairHint,
		})
	}
	for _, m := range req.Media {
		if strings.HasPrefix(m.MimeType, "image/") {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", m.MimeType, base64.StdEncoding.EncodeToString(m.Bytes)),
				},
			})
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are " + req.Role + ". Respond with a single JSON object and nothing else."},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "stage", req.Stage, "error", err)
		return nil, NewInvocationError(req.Stage, isTransient(err), err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("OpenAI returned no choices or empty content", "stage", req.Stage)
		return nil, NewInvocationError(req.Stage, true, ErrEmptyResponse)
	}

	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

// isTransient classifies an OpenAI API error as retryable or not.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Transport-level failures (connection reset, timeout) are transient.
	return true
}
