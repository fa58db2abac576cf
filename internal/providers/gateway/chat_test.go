package gateway

import (
	"context"
	"encoding/json"
	"testing"
)

func TestChatImagePartsPassThrough(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/chat/completions", map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{
				"content": "here you go",
				"images": []any{map[string]any{
					"image_url": map[string]any{"url": "https://cdn.example.com/out.png"},
				}},
			},
		}},
	})
	client := newTestClient(transport)

	resp, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:        "sketch of the hero",
		Model:         ModelMultimodalChat,
		AspectRatio:   "1:1",
		ReferenceURLs: []string{"https://cdn.example.com/hero.png"},
	})
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if len(resp.Images) != 1 || resp.Images[0].URL != "https://cdn.example.com/out.png" {
		t.Fatalf("unexpected images: %+v", resp.Images)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	messages := payload["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("content parts = %d, want text + image_url", len(content))
	}
	imagePart := content[1].(map[string]any)
	if imagePart["type"] != "image_url" {
		t.Fatalf("second part type = %v", imagePart["type"])
	}
	urlNode := imagePart["image_url"].(map[string]any)
	if urlNode["url"] != "https://cdn.example.com/hero.png" {
		t.Fatalf("reference url must pass through untouched, got %v", urlNode["url"])
	}
}

func TestGenerateTextTwoMessageShape(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/chat/completions", map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{"content": "SHOT 1: the harbor at dawn"},
		}},
	})
	client := newTestClient(transport)

	text, err := client.GenerateText(context.Background(), TextRequest{
		System:      "Respond in English.",
		Prompt:      "Break this story into shots.",
		Model:       "gpt-4o-mini",
		MaxTokens:   2048,
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	if text != "SHOT 1: the harbor at dawn" {
		t.Fatalf("text = %q", text)
	}

	var payload chatRequest
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(payload.Messages))
	}
	if payload.Messages[0].Role != "system" || payload.Messages[1].Role != "user" {
		t.Fatalf("unexpected roles: %+v", payload.Messages)
	}
	if payload.MaxTokens != 2048 || payload.Temperature != 0.7 || payload.TopP != 0.9 {
		t.Fatalf("sampling parameters not forwarded: %+v", payload)
	}
}

func TestGenerateTextEmptyChoicesIsPermanent(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/chat/completions", map[string]any{"choices": []any{}})
	client := newTestClient(transport)

	_, err := client.GenerateText(context.Background(), TextRequest{Prompt: "x", Model: "gpt-4o-mini"})
	if err == nil || IsTransient(err) {
		t.Fatalf("empty choices must be a permanent error, got %v", err)
	}
}
