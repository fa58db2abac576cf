package gateway

import "testing"

func TestResolveIsPureAndOrdered(t *testing.T) {
	cases := []struct {
		model     string
		protocol  Protocol
		effective string
	}{
		{ModelProxyImage, ProtocolGemini, ModelProxyFallback},
		{"gemini-2.5-flash-image-preview", ProtocolGemini, "gemini-2.5-flash-image-preview"},
		{"gemini-3.0-pro-image-hd", ProtocolGemini, "gemini-3.0-pro-image-hd"},
		{ModelMultimodalChat, ProtocolChat, ModelMultimodalChat},
		{ModelLegacySized, ProtocolLegacyImages, ModelLegacySized},
		{"seedream-4", ProtocolLegacyImages, "seedream-4"},
		{"gemini-2.5-flash", ProtocolLegacyImages, "gemini-2.5-flash"},
		{"", ProtocolLegacyImages, ""},
	}
	for _, tc := range cases {
		for i := 0; i < 3; i++ {
			protocol, effective := Resolve(tc.model)
			if protocol != tc.protocol {
				t.Errorf("Resolve(%q) protocol = %v, want %v", tc.model, protocol, tc.protocol)
			}
			if effective != tc.effective {
				t.Errorf("Resolve(%q) model = %q, want %q", tc.model, effective, tc.effective)
			}
		}
	}
}

func TestProxyProtocolNeverRouted(t *testing.T) {
	models := []string{ModelProxyImage, ModelMultimodalChat, ModelLegacySized, "kling-video-v2", "anything"}
	for _, m := range models {
		if protocol, _ := Resolve(m); protocol == ProtocolProxy {
			t.Errorf("Resolve(%q) selected the disabled proxy protocol", m)
		}
	}
}
