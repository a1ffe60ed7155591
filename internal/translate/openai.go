package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAI переводит через Responses API.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(apiKey, baseURL string, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		// повтор делает Service через другого провайдера
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (p *OpenAI) Name() string { return ProviderOpenAI }

func (p *OpenAI) Translate(ctx context.Context, req Request) (string, error) {
	model := openai.ChatModelGPT3_5Turbo
	if req.PreferredModel == "gpt-4" {
		model = openai.ChatModelGPT4
	}
	instructions := fmt.Sprintf(
		"You are a translation assistant. Translate the user's text from %s to %s. Provide only the translated text without explanations or notes.",
		languageName(req.SourceLanguage), req.TargetLanguage,
	)

	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           model,
		Instructions:    openai.String(instructions),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Text)},
		Temperature:     openai.Float(0.3),
		MaxOutputTokens: openai.Int(2048),
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", errors.New("openai: unexpected response format, no output text")
	}
	return out, nil
}
