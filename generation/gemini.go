// Package generation calls the Gemini image model.
package generation

import (
	"bytes"
	"canvas-studio/config"
	"canvas-studio/core"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrCredentialMissing is returned when no API key is configured.
	ErrCredentialMissing = errors.New("generation api key is not configured")
	// ErrQuotaExceeded means the account ran out of quota or needs billing.
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	// ErrNoImage is returned when the model answered without an image part.
	ErrNoImage = errors.New("model returned no image")
)

// Kind is the coarse classification of a generation failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindQuotaExceeded
)

// Structures of the generateContent REST API.

type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// APIError is the error body the API returns alongside a non-2xx status.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Is lets errors.Is(err, ErrQuotaExceeded) match rate-limit responses.
func (e *APIError) Is(target error) bool {
	return target == ErrQuotaExceeded && (e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED")
}

// Client implements core.Generator against the Gemini REST API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func NewClient(cfg config.Gemini, opts ...Option) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		// Image generation has no upper bound on latency.
		http: &http.Client{},
	}
	if c.baseURL == "" {
		c.baseURL = config.DefaultGeminiBaseURL
	}
	if c.model == "" {
		c.model = config.DefaultGeminiModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready reports whether requests can be made at all.
func (c *Client) Ready() bool { return c.apiKey != "" }

// Generate sends the prompt followed by each reference image and returns the
// first image part of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, references []core.Image) (core.Image, error) {
	if c.apiKey == "" {
		return core.Image{}, ErrCredentialMissing
	}

	parts := []Part{{Text: prompt}}
	for _, ref := range references {
		parts = append(parts, Part{InlineData: &InlineData{
			MIMEType: ref.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	body, err := json.Marshal(GenerateContentRequest{Contents: []Content{{Role: "user", Parts: parts}}})
	if err != nil {
		return core.Image{}, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.Image{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	log := logrus.WithFields(logrus.Fields{"model": c.model, "references": len(references)})
	log.Debug("Sending generation request")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.Image{}, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Image{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return core.Image{}, parseAPIError(resp.StatusCode, raw)
	}

	var out GenerateContentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return core.Image{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		log.Warn("No content returned from model")
		return core.Image{}, ErrNoImage
	}

	for _, p := range out.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return core.Image{}, fmt.Errorf("decode image part: %w", err)
		}
		mime := p.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return core.Image{MIMEType: mime, Data: data}, nil
	}
	log.Warn("No inlineData image part in response")
	return core.Image{}, ErrNoImage
}

func parseAPIError(status int, raw []byte) error {
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
	}
	return apiErr
}

// Classify sorts a Generate error into the kinds the user is told about.
func Classify(err error) Kind {
	if errors.Is(err, ErrQuotaExceeded) {
		return KindQuotaExceeded
	}
	return KindUnknown
}
