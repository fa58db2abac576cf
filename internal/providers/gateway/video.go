package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// videoSizes maps aspect ratios to the fixed pixel sizes the video vendor
// accepts. Total: unrecognized ratios read as landscape.
var videoSizes = map[string]string{
	"16:9": "1280x720",
	"9:16": "720x1280",
	"1:1":  "720x720",
}

// VideoSizeForRatio derives the vendor size parameter from an aspect ratio.
func VideoSizeForRatio(ratio string) string {
	if size, ok := videoSizes[ratio]; ok {
		return size
	}
	return videoSizes["16:9"]
}

// ClampSeconds normalizes a requested duration to the vendor-supported
// buckets: <=4 -> 4, <=8 -> 8, otherwise 12. A nil duration defaults to 4.
func ClampSeconds(seconds *int) int {
	if seconds == nil {
		return 4
	}
	switch {
	case *seconds <= 4:
		return 4
	case *seconds <= 8:
		return 8
	default:
		return 12
	}
}

// SubmitVideo posts a multipart creation request to the async video endpoint
// and returns the vendor task handle. The multipart body is built fresh on
// every call so retries never reuse a consumed attachment.
func (c *Client) SubmitVideo(ctx context.Context, req VideoRequest) (*VideoHandle, error) {
	if len(req.ReferenceData) == 0 {
		return nil, permanent("video generation requires a reference image")
	}
	size := req.Size
	if size == "" {
		size = VideoSizeForRatio(req.AspectRatio)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"model":   req.Model,
		"prompt":  req.Prompt,
		"seconds": strconv.Itoa(ClampSeconds(req.Seconds)),
		"size":    size,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("gateway: write field %s: %w", name, err)
		}
	}
	name := req.ReferenceName
	if name == "" {
		name = "reference.png"
	}
	mime := req.ReferenceMIME
	if mime == "" {
		mime = "image/png"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input_reference"; filename=%q`, name))
	header.Set("Content-Type", mime)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("gateway: create reference part: %w", err)
	}
	if _, err := part.Write(req.ReferenceData); err != nil {
		return nil, fmt.Errorf("gateway: write reference part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gateway: finish multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", &body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build video request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.mediaClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: video request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read video response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	var decoded VideoStatus
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("gateway: decode video response: %w", err)
	}
	if decoded.ID == "" {
		return nil, permanent("video endpoint returned no task id")
	}
	c.logger.Debug().
		Str("vendor_task_id", decoded.ID).
		Str("status", decoded.Status).
		Msg("gateway: video task submitted")
	return &VideoHandle{ID: decoded.ID, Status: decoded.Status}, nil
}

// GetVideo fetches the current vendor status for a task. The payload is
// decoded permissively: early polls carry only a handful of fields.
func (c *Client) GetVideo(ctx context.Context, taskID string) (*VideoStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build status request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: status request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read status response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	var status VideoStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("gateway: decode status response: %w", err)
	}
	return &status, nil
}

// DownloadVideo streams the raw media bytes of a completed task.
func (c *Client) DownloadVideo(ctx context.Context, taskID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+taskID+"/content", nil)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: build content request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: content request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, "", decodeAPIError(resp.StatusCode, raw)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: read content: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "video/mp4"
	}
	if !strings.HasPrefix(mime, "video/") && !strings.HasPrefix(mime, "application/") {
		mime = "video/mp4"
	}
	return data, mime, nil
}
