package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// AspectPhrase folds an aspect ratio into prompt text for the native
// multimodal call, which has no ratio parameter. The function is total;
// unparsable ratios read as square.
func AspectPhrase(ratio string) string {
	orientation := "square"
	parts := strings.Split(ratio, ":")
	if len(parts) == 2 {
		w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			switch {
			case w > h:
				orientation = "landscape"
			case w < h:
				orientation = "portrait"
			}
		}
	}
	if ratio == "" {
		ratio = "1:1"
	}
	return fmt.Sprintf("in %s %s format", ratio, orientation)
}

// generateGemini implements the native multimodal generate-content call:
// one text part carrying the prompt plus the aspect phrase, and one inline
// base64 part per reference image.
func (c *Client) generateGemini(ctx context.Context, req ImageRequest) (*Response, error) {
	parts := []geminiPart{{
		Text: strings.TrimSpace(req.Prompt) + "\nRender the image " + AspectPhrase(req.AspectRatio) + ".",
	}}
	for _, ref := range req.ReferenceURLs {
		data, mime, err := c.download(ctx, ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}
	payload := geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.geminiBaseURL, url.PathEscape(req.Model))
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode gemini request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.geminiAPIKey != "" {
		q := httpReq.URL.Query()
		q.Set("key", c.geminiAPIKey)
		httpReq.URL.RawQuery = q.Encode()
	}

	resp, err := c.mediaClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: gemini request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read gemini response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, classify(resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		return nil, classify(resp.StatusCode, "", strings.TrimSpace(string(raw)))
	}

	var decoded geminiGenerateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("gateway: decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return nil, permanent("gemini returned no candidates")
	}
	out := &Response{}
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				mime := part.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				out.Images = append(out.Images, Image{B64: part.InlineData.Data, MIME: mime})
			} else if text := strings.TrimSpace(part.Text); text != "" {
				out.Texts = append(out.Texts, text)
			}
		}
	}
	if len(out.Images) == 0 {
		return nil, permanent("gemini returned no image data")
	}
	return out, nil
}
