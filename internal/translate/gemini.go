package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1"
	geminiModel           = "gemini-2.0-flash"
	cloudPlatformScope    = "https://www.googleapis.com/auth/cloud-platform"
)

type GeminiOptions struct {
	Endpoint   string // базовый URL, без /models/...
	APIKey     string // пусто: Application Default Credentials
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini переводит через generateContent REST API.
type Gemini struct {
	opts GeminiOptions

	once   sync.Once
	adc    *http.Client
	adcErr error
}

func NewGemini(opts GeminiOptions) *Gemini {
	if strings.TrimSpace(opts.Endpoint) == "" {
		opts.Endpoint = defaultGeminiEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Gemini{opts: opts}
}

func (p *Gemini) Name() string { return ProviderGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *Gemini) Translate(ctx context.Context, req Request) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Only provide the translated text without explanations:\n\n%s",
		languageName(req.SourceLanguage), req.TargetLanguage, req.Text,
	)
	var rp geminiRequest
	rp.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	rp.GenerationConfig.Temperature = 0.2
	rp.GenerationConfig.MaxOutputTokens = 2048

	body, err := json.Marshal(&rp)
	if err != nil {
		return "", err
	}

	client, endpoint, err := p.target(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: no response received: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return "", fmt.Errorf("gemini api error: status=%d, body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var gr geminiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 5<<20)).Decode(&gr); err != nil {
		return "", fmt.Errorf("gemini: decode json response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: unexpected response format")
	}
	out := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	if out == "" {
		return "", errors.New("gemini: empty translation")
	}
	return out, nil
}

// target возвращает HTTP-клиент и URL: с ключом в query либо через ADC.
func (p *Gemini) target(ctx context.Context) (*http.Client, string, error) {
	endpoint := strings.TrimRight(p.opts.Endpoint, "/") + "/models/" + geminiModel + ":generateContent"
	if p.opts.APIKey != "" {
		return p.opts.HTTPClient, endpoint + "?key=" + url.QueryEscape(p.opts.APIKey), nil
	}

	p.once.Do(func() {
		// клиент живёт дольше одного запроса, контекст запроса ему не подходит
		p.adc, p.adcErr = google.DefaultClient(context.WithoutCancel(ctx), cloudPlatformScope)
	})
	if p.adcErr != nil {
		return nil, "", fmt.Errorf("gemini: no API key and ADC credentials not found: %w", p.adcErr)
	}
	return p.adc, endpoint, nil
}
