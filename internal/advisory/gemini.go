package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// GeminiBaseURL is the Google generative language API endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com"

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiAdvisor asks a Gemini model for a single parameter adjustment.
type GeminiAdvisor struct {
	client *resty.Client
	apiKey string
	model  string
}

// NewGeminiAdvisor creates an advisor against the public Gemini API.
func NewGeminiAdvisor(apiKey, model string) *GeminiAdvisor {
	if model == "" {
		model = DefaultGeminiModel
	}
	client := resty.New().
		SetBaseURL(GeminiBaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	return &GeminiAdvisor{
		client: client,
		apiKey: apiKey,
		model:  model,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Suggest sends the performance report and parses the model's reply.
func (a *GeminiAdvisor) Suggest(ctx context.Context, report PerformanceReport) (*Suggestion, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: buildPrompt(report)}},
		}},
	}

	var respBody geminiResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("key", a.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&respBody).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", a.model))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		if respBody.Error != nil {
			return nil, fmt.Errorf("gemini API error %d: %s", respBody.Error.Code, respBody.Error.Message)
		}
		return nil, fmt.Errorf("gemini API status %d", resp.StatusCode())
	}
	if len(respBody.Candidates) == 0 || len(respBody.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}

	return ParseSuggestion(respBody.Candidates[0].Content.Parts[0].Text)
}

// ParseSuggestion extracts a Suggestion from model output. Tolerates
// markdown code fences around the JSON and accepts both the structured
// form {"parameter": "adx_len", "value": 16} and the bare single-entry
// form {"adx_len": 16} that models often produce anyway.
func ParseSuggestion(text string) (*Suggestion, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var s Suggestion
	if err := json.Unmarshal([]byte(cleaned), &s); err == nil && s.Parameter != "" {
		return &s, nil
	}

	var bare map[string]float64
	if err := json.Unmarshal([]byte(cleaned), &bare); err != nil {
		return nil, fmt.Errorf("parse suggestion: %w", err)
	}
	if len(bare) != 1 {
		return nil, fmt.Errorf("suggestion must contain exactly one parameter, got %d", len(bare))
	}
	for k, v := range bare {
		return &Suggestion{Parameter: k, Value: v}, nil
	}
	return nil, fmt.Errorf("suggestion missing parameter name")
}

// buildPrompt renders the report into an instruction asking for exactly
// one tunable parameter change in strict JSON.
func buildPrompt(report PerformanceReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are tuning a crypto trading strategy named %q version %q.\n\n", report.Strategy, report.Version)
	fmt.Fprintf(&b, "Recent live performance over %d trades:\n", report.Trades)
	fmt.Fprintf(&b, "- wins: %d, losses: %d, win rate: %.2f%%\n", report.Wins, report.Losses, report.WinRate*100)
	fmt.Fprintf(&b, "- total PnL: %.4f\n", report.TotalPnL)
	if report.Losses > 0 {
		fmt.Fprintf(&b, "Average indicator readings at entry on losing trades:\n")
		fmt.Fprintf(&b, "- MCI: %.4f, ADX score: %.4f, SNR score: %.4f\n", report.LossMeanMCI, report.LossMeanADX, report.LossMeanSNR)
	}

	b.WriteString("\nCurrent configuration:\n")
	keys := make([]string, 0, len(report.Parameters))
	for k := range report.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s = %g\n", k, report.Parameters[k])
	}

	b.WriteString("\nSuggest exactly ONE parameter change that is most likely to improve the win rate. ")
	b.WriteString("Only these parameters may be changed: coherence_threshold, adx_len, snr_len, atr_mult, tp_mult, qqe_rsi_len, qqe_smooth. ")
	b.WriteString(`Respond with strict JSON only, no prose: {"parameter": "<name>", "value": <number>, "rationale": "<one sentence>"}`)

	return b.String()
}
