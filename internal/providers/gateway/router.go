package gateway

import "strings"

// Protocol identifies one of the vendor wire protocols.
type Protocol int

const (
	// ProtocolLegacyImages is the legacy images-generation endpoint.
	ProtocolLegacyImages Protocol = 1
	// ProtocolGemini is the native multimodal generate-content call.
	ProtocolGemini Protocol = 3
	// ProtocolChat is the chat-completions call with multimodal content parts.
	ProtocolChat Protocol = 4
	// ProtocolProxy is the third-party proxy. Implemented but never routed.
	ProtocolProxy Protocol = 5
)

func (p Protocol) String() string {
	switch p {
	case ProtocolLegacyImages:
		return "legacy-images"
	case ProtocolGemini:
		return "gemini"
	case ProtocolChat:
		return "chat"
	case ProtocolProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// route pairs a model predicate with the protocol it selects. Substitute, when
// set, replaces the requested model before the call is made.
type route struct {
	name       string
	match      func(model string) bool
	protocol   Protocol
	substitute string
}

// routes is the prioritized routing table. First match wins; the final entry
// is a catch-all so resolution is total.
var routes = []route{
	{
		name:       "disabled-proxy-substitute",
		match:      func(m string) bool { return m == ModelProxyImage },
		protocol:   ProtocolGemini,
		substitute: ModelProxyFallback,
	},
	{
		name:     "gemini-image",
		match:    isGeminiImageModel,
		protocol: ProtocolGemini,
	},
	{
		name:     "multimodal-chat",
		match:    func(m string) bool { return m == ModelMultimodalChat },
		protocol: ProtocolChat,
	},
	{
		name:     "legacy-images",
		match:    func(string) bool { return true },
		protocol: ProtocolLegacyImages,
	},
}

func isGeminiImageModel(model string) bool {
	return strings.HasPrefix(model, "gemini-") && strings.Contains(model, "-image-")
}

// Resolve selects the protocol for a model and returns the model actually
// sent to the vendor. Resolution is a pure function of the model name.
func Resolve(model string) (Protocol, string) {
	for _, r := range routes {
		if r.match(model) {
			effective := model
			if r.substitute != "" {
				effective = r.substitute
			}
			return r.protocol, effective
		}
	}
	// Unreachable: the table ends with a catch-all.
	return ProtocolLegacyImages, model
}
