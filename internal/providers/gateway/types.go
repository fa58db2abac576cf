package gateway

// Model identifiers with dedicated routing behavior. Everything else falls
// through to the legacy images endpoint.
const (
	// ModelProxyImage is served by the disabled third-party proxy. Routing
	// silently substitutes ModelProxyFallback and uses the native Gemini call.
	ModelProxyImage    = "kling-image-v1"
	ModelProxyFallback = "gemini-2.5-flash-image-preview"

	// ModelMultimodalChat generates images through the chat-completions
	// endpoint with text and image_url content parts.
	ModelMultimodalChat = "gpt-4o"

	// ModelLegacySized is the one legacy-endpoint model whose size must be
	// derived from the aspect ratio and which rejects reference images.
	ModelLegacySized = "dall-e-3"
)

// ImageRequest is the normalized input for image generation. Count asks for
// that many artifacts in one call where the protocol supports it (the legacy
// images endpoint); the Gemini and chat protocols return a single image per
// call regardless. Zero means one.
type ImageRequest struct {
	Prompt        string
	Model         string
	AspectRatio   string
	Count         int
	ReferenceURLs []string
}

// TextRequest is the input for text generation. Language pins the output
// language in the system instruction.
type TextRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// VideoRequest is the input for asynchronous video submission. The reference
// image is mandatory for first-frame grounding and is attached as a multipart
// file part.
type VideoRequest struct {
	Prompt        string
	Model         string
	AspectRatio   string
	Seconds       *int
	Size          string
	ReferenceData []byte
	ReferenceName string
	ReferenceMIME string
}

// Image is one produced artifact: either a remote URL or inline base64 data.
type Image struct {
	URL  string
	B64  string
	MIME string
}

// VideoHandle identifies an asynchronous vendor video job.
type VideoHandle struct {
	ID     string
	Status string
}

// Response is the normalized union of vendor results.
type Response struct {
	Texts  []string
	Images []Image
	Video  *VideoHandle
}

// VideoStatus mirrors the vendor's status payload. Every field is optional:
// early polls return a minimal payload that grows richer as the job advances,
// so absence of a field is never an error by itself.
type VideoStatus struct {
	ID          string            `json:"id,omitempty"`
	Object      string            `json:"object,omitempty"`
	Status      string            `json:"status,omitempty"`
	Progress    int               `json:"progress,omitempty"`
	Model       string            `json:"model,omitempty"`
	Seconds     string            `json:"seconds,omitempty"`
	Size        string            `json:"size,omitempty"`
	VideoURL    string            `json:"video_url,omitempty"`
	CreatedAt   int64             `json:"created_at,omitempty"`
	CompletedAt int64             `json:"completed_at,omitempty"`
	ExpiresAt   int64             `json:"expires_at,omitempty"`
	Error       *VideoStatusError `json:"error,omitempty"`
}

// VideoStatusError is the optional error block of a failed video job.
type VideoStatusError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Vendor-terminal video statuses.
const (
	VideoCompleted = "completed"
	VideoFailed    = "failed"
	VideoErrored   = "error"
)

// TerminalVideoStatus reports whether polling should stop.
func TerminalVideoStatus(status string) bool {
	switch status {
	case VideoCompleted, VideoFailed, VideoErrored:
		return true
	default:
		return false
	}
}
