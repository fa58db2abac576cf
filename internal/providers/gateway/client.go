package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyboard-server/internal/infra"
)

// Options configures the vendor gateway.
type Options struct {
	// APIKey and BaseURL cover the OpenAI-compatible surface: chat
	// completions, legacy image generation and the async video endpoints.
	APIKey  string
	BaseURL string

	GeminiAPIKey  string
	GeminiBaseURL string

	ProxyAPIKey  string
	ProxyBaseURL string

	// TextClient serves chat calls; MediaClient serves image and video calls
	// with substantially longer timeouts.
	TextClient  *http.Client
	MediaClient *http.Client
	Logger      *infra.Logger
}

// Client is the stateless vendor gateway. It translates normalized generation
// requests into one of the vendor wire protocols and normalizes the response.
// It is safe for concurrent use by all workers.
type Client struct {
	apiKey        string
	baseURL       string
	geminiAPIKey  string
	geminiBaseURL string
	proxyAPIKey   string
	proxyBaseURL  string
	textClient    *http.Client
	mediaClient   *http.Client
	logger        *infra.Logger
}

// NewClient constructs a gateway with sane defaults.
func NewClient(opts Options) *Client {
	textClient := opts.TextClient
	if textClient == nil {
		textClient = &http.Client{Timeout: 60 * time.Second}
	}
	mediaClient := opts.MediaClient
	if mediaClient == nil {
		mediaClient = &http.Client{Timeout: 5 * time.Minute}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	geminiBaseURL := strings.TrimRight(opts.GeminiBaseURL, "/")
	if geminiBaseURL == "" {
		geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	proxyBaseURL := strings.TrimRight(opts.ProxyBaseURL, "/")
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		geminiAPIKey:  strings.TrimSpace(opts.GeminiAPIKey),
		geminiBaseURL: geminiBaseURL,
		proxyAPIKey:   strings.TrimSpace(opts.ProxyAPIKey),
		proxyBaseURL:  proxyBaseURL,
		textClient:    textClient,
		mediaClient:   mediaClient,
		logger:        logger,
	}
}

// GenerateImage routes the request through the protocol table and returns the
// normalized response.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Response, error) {
	protocol, model := Resolve(req.Model)
	c.logger.Debug().
		Str("model", req.Model).
		Str("effective_model", model).
		Str("protocol", protocol.String()).
		Msg("gateway: routing image request")
	req.Model = model
	switch protocol {
	case ProtocolGemini:
		return c.generateGemini(ctx, req)
	case ProtocolChat:
		return c.generateChat(ctx, req)
	case ProtocolProxy:
		return c.generateProxy(ctx, req)
	default:
		return c.generateLegacyImages(ctx, req)
	}
}

// postJSON issues a JSON POST with bearer auth against the OpenAI-compatible
// surface and decodes the response into out, classifying HTTP errors.
func (c *Client) postJSON(ctx context.Context, client *http.Client, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// decodeAPIError maps an OpenAI-style error body into a classified VendorError.
func decodeAPIError(status int, raw []byte) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		code := envelope.Error.Type
		if code == "" {
			code = fmt.Sprint(envelope.Error.Code)
		}
		return classify(status, code, envelope.Error.Message)
	}
	return classify(status, "", strings.TrimSpace(string(raw)))
}

// download fetches reference bytes for protocols that need inline payloads.
func (c *Client) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: build download request: %w", err)
	}
	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("gateway: download %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: read download: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}
