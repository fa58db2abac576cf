package gateway

import "context"

type imagesRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	N              int      `json:"n"`
	Size           string   `json:"size,omitempty"`
	ReferenceImage string   `json:"reference_image,omitempty"`
	Images         []string `json:"images,omitempty"`
}

type imagesResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// legacySizes maps aspect ratios to the fixed sizes ModelLegacySized accepts.
// The mapping is total: unrecognized ratios fall back to square.
var legacySizes = map[string]string{
	"1:1":  "1024x1024",
	"16:9": "1792x1024",
	"9:16": "1024x1792",
}

// LegacySizeForRatio derives the size parameter for the legacy endpoint. Only
// ModelLegacySized requires the lookup; every other model accepts the aspect
// ratio verbatim.
func LegacySizeForRatio(model, ratio string) string {
	if model != ModelLegacySized {
		return ratio
	}
	if size, ok := legacySizes[ratio]; ok {
		return size
	}
	return legacySizes["1:1"]
}

// generateLegacyImages implements the legacy image-generation endpoint. A
// single reference becomes reference_image, multiple become an images array.
func (c *Client) generateLegacyImages(ctx context.Context, req ImageRequest) (*Response, error) {
	if req.Model == ModelLegacySized && len(req.ReferenceURLs) > 0 {
		return nil, permanent("model %s does not accept reference images", req.Model)
	}
	n := req.Count
	if n < 1 {
		n = 1
	}
	payload := imagesRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		N:      n,
		Size:   LegacySizeForRatio(req.Model, req.AspectRatio),
	}
	switch len(req.ReferenceURLs) {
	case 0:
	case 1:
		payload.ReferenceImage = req.ReferenceURLs[0]
	default:
		payload.Images = req.ReferenceURLs
	}

	var decoded imagesResponse
	if err := c.postJSON(ctx, c.mediaClient, "/images/generations", payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data) == 0 {
		return nil, permanent("images endpoint returned no data")
	}
	resp := &Response{}
	for _, item := range decoded.Data {
		if item.URL == "" && item.B64JSON == "" {
			continue
		}
		resp.Images = append(resp.Images, Image{URL: item.URL, B64: item.B64JSON, MIME: "image/png"})
	}
	if len(resp.Images) == 0 {
		return nil, permanent("images endpoint returned empty items")
	}
	return resp, nil
}
