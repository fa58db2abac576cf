package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// The third-party proxy protocol is retained for when the vendor account is
// re-enabled, but the routing table never selects it.

type proxyRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	Ratio          string  `json:"ratio,omitempty"`
	Resolution     string  `json:"resolution,omitempty"`
	Strength       float64 `json:"strength,omitempty"`
	ReferenceImage string  `json:"reference_image,omitempty"`
}

type proxyEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// proxyErrorText maps the proxy's numeric error codes to human-readable
// messages. Unknown codes keep the raw vendor message.
var proxyErrorText = map[int]string{
	401: "proxy authentication failed, check the API key",
	402: "insufficient proxy balance, top up the vendor account",
	422: "invalid generation parameters",
	429: "proxy is overloaded, retry later",
	451: "prompt rejected by content policy",
	452: "reference image rejected by content policy",
	504: "proxy timed out",
}

func proxyMessage(code int, fallback string) string {
	if msg, ok := proxyErrorText[code]; ok {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("proxy error code %d", code)
}

// generateProxy implements the proxy wire protocol: custom auth header,
// native ratio/resolution/strength fields and a {code,message,data[]}
// response envelope.
func (c *Client) generateProxy(ctx context.Context, req ImageRequest) (*Response, error) {
	if c.proxyBaseURL == "" {
		return nil, permanent("proxy vendor is not configured")
	}
	payload := proxyRequest{
		Model:      req.Model,
		Prompt:     req.Prompt,
		Ratio:      req.AspectRatio,
		Resolution: "1k",
		Strength:   0.75,
	}
	if len(req.ReferenceURLs) > 0 {
		payload.ReferenceImage = req.ReferenceURLs[0]
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode proxy request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyBaseURL+"/v1/images", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: build proxy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.proxyAPIKey)

	resp, err := c.mediaClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: proxy request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read proxy response: %w", err)
	}
	var envelope proxyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, classify(resp.StatusCode, "", strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode >= 300 || envelope.Code != 0 {
		code := envelope.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, classify(code, fmt.Sprint(code), proxyMessage(code, envelope.Message))
	}
	out := &Response{}
	for _, item := range envelope.Data {
		if item.URL != "" {
			out.Images = append(out.Images, Image{URL: item.URL, MIME: "image/png"})
		}
	}
	if len(out.Images) == 0 {
		return nil, permanent("proxy returned no images")
	}
	return out, nil
}
