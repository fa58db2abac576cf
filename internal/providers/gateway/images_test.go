package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestLegacySizeForRatioIsTotal(t *testing.T) {
	cases := []struct {
		model, ratio, want string
	}{
		{ModelLegacySized, "1:1", "1024x1024"},
		{ModelLegacySized, "16:9", "1792x1024"},
		{ModelLegacySized, "9:16", "1024x1792"},
		{ModelLegacySized, "21:9", "1024x1024"},
		{ModelLegacySized, "", "1024x1024"},
		{"seedream-4", "16:9", "16:9"},
		{"seedream-4", "weird", "weird"},
	}
	for _, tc := range cases {
		if got := LegacySizeForRatio(tc.model, tc.ratio); got != tc.want {
			t.Errorf("LegacySizeForRatio(%q, %q) = %q, want %q", tc.model, tc.ratio, got, tc.want)
		}
	}
}

func TestLegacyImagesPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/images/generations", map[string]any{
		"data": []any{map[string]any{"url": "https://cdn.example.com/out.png"}},
	})
	client := newTestClient(transport)

	resp, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:        "a rainy alley",
		Model:         "seedream-4",
		AspectRatio:   "16:9",
		ReferenceURLs: []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
	})
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if len(resp.Images) != 1 || resp.Images[0].URL != "https://cdn.example.com/out.png" {
		t.Fatalf("unexpected images: %+v", resp.Images)
	}

	var payload imagesRequest
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.N != 1 {
		t.Fatalf("n = %d, want 1", payload.N)
	}
	if payload.Size != "16:9" {
		t.Fatalf("size = %q, want ratio passed through verbatim", payload.Size)
	}
	if payload.ReferenceImage != "" {
		t.Fatalf("reference_image must be empty when multiple references are supplied")
	}
	if len(payload.Images) != 2 {
		t.Fatalf("images = %v, want both references", payload.Images)
	}
}

func TestLegacyCountRequested(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/images/generations", map[string]any{
		"data": []any{map[string]any{"url": "https://cdn.example.com/out.png"}},
	})
	client := newTestClient(transport)

	if _, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt: "a rainy alley",
		Model:  "seedream-4",
		Count:  3,
	}); err != nil {
		t.Fatalf("generate image: %v", err)
	}
	var payload imagesRequest
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.N != 3 {
		t.Fatalf("n = %d, want 3", payload.N)
	}
}

func TestLegacySingleReferenceField(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/images/generations", map[string]any{
		"data": []any{map[string]any{"b64_json": "aGVsbG8="}},
	})
	client := newTestClient(transport)

	if _, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:        "portrait",
		Model:         "seedream-4",
		ReferenceURLs: []string{"https://cdn.example.com/a.png"},
	}); err != nil {
		t.Fatalf("generate image: %v", err)
	}
	var payload imagesRequest
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ReferenceImage != "https://cdn.example.com/a.png" {
		t.Fatalf("reference_image = %q", payload.ReferenceImage)
	}
	if len(payload.Images) != 0 {
		t.Fatalf("images must be empty for a single reference")
	}
}

func TestLegacySizedModelRejectsReferences(t *testing.T) {
	transport := newCaptureTransport()
	client := newTestClient(transport)

	_, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:        "portrait",
		Model:         ModelLegacySized,
		ReferenceURLs: []string{"https://cdn.example.com/a.png"},
	})
	if err == nil {
		t.Fatalf("expected rejection")
	}
	var ve *VendorError
	if !errors.As(err, &ve) || ve.Transient {
		t.Fatalf("rejection must be a permanent vendor error, got %v", err)
	}
	if transport.requestSeen != 0 {
		t.Fatalf("no vendor call must be made, saw %d", transport.requestSeen)
	}
}

func TestLegacyEmptyDataIsPermanent(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/v1/images/generations", map[string]any{"data": []any{}})
	client := newTestClient(transport)

	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x", Model: "seedream-4"})
	if err == nil || IsTransient(err) {
		t.Fatalf("empty data must be a permanent error, got %v", err)
	}
}
