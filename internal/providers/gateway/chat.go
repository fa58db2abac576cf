package gateway

import (
	"context"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL chatImageURL `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// generateChat implements the multimodal chat-completion call: message content
// is an array of text and image_url parts, reference URLs pass through without
// re-encoding.
func (c *Client) generateChat(ctx context.Context, req ImageRequest) (*Response, error) {
	parts := []chatPart{{
		Type: "text",
		Text: strings.TrimSpace(req.Prompt) + "\nRender the image " + AspectPhrase(req.AspectRatio) + ".",
	}}
	for _, ref := range req.ReferenceURLs {
		parts = append(parts, chatPart{Type: "image_url", ImageURL: &chatImageURL{URL: ref}})
	}
	payload := chatRequest{
		Model:    req.Model,
		Messages: []chatMessage{{Role: "user", Content: parts}},
	}

	var decoded chatResponse
	if err := c.postJSON(ctx, c.mediaClient, "/chat/completions", payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Choices) == 0 {
		return nil, permanent("chat endpoint returned no choices")
	}
	out := &Response{}
	for _, choice := range decoded.Choices {
		for _, img := range choice.Message.Images {
			if img.ImageURL.URL != "" {
				out.Images = append(out.Images, Image{URL: img.ImageURL.URL, MIME: "image/png"})
			}
		}
		if len(out.Images) == 0 {
			for _, u := range extractImageURLs(choice.Message.Content) {
				out.Images = append(out.Images, Image{URL: u, MIME: "image/png"})
			}
		}
	}
	if len(out.Images) == 0 {
		return nil, permanent("chat endpoint returned no image content")
	}
	return out, nil
}

// GenerateText runs the fixed two-message chat completion: a system
// instruction pinning the output language plus the user prompt.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	payload := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	var decoded chatResponse
	if err := c.postJSON(ctx, c.textClient, "/chat/completions", payload, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", permanent("chat endpoint returned no choices")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", permanent("chat endpoint returned empty content")
	}
	return content, nil
}

// extractImageURLs pulls bare or markdown-wrapped image URLs out of a chat
// content string.
func extractImageURLs(content string) []string {
	var urls []string
	for _, field := range strings.FieldsFunc(content, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '(' || r == ')'
	}) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			urls = append(urls, strings.TrimRight(field, ".,;"))
		}
	}
	return urls
}
