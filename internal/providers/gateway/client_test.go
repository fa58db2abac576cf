package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// captureTransport stubs vendor endpoints by path (POST/GET) and records the
// most recent request body so payload shapes can be asserted.
type captureTransport struct {
	responses   map[string]responseStub
	lastBody    []byte
	lastHeader  http.Header
	lastURL     string
	requestLog  []string
	failWith    error
	failCount   int
	requestSeen int
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requestSeen++
	c.requestLog = append(c.requestLog, req.Method+" "+req.URL.Path)
	c.lastHeader = req.Header.Clone()
	c.lastURL = req.URL.String()
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if c.failWith != nil && c.requestSeen <= c.failCount {
		return nil, c.failWith
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	if stub, ok := c.responses[req.URL.String()]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (c *captureTransport) setErrorResponse(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (c *captureTransport) setBinaryResponse(url, contentType string, data []byte) {
	c.responses[url] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{contentType}},
		body:   data,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}

func newTestClient(transport *captureTransport) *Client {
	return NewClient(Options{
		APIKey:       "test",
		GeminiAPIKey: "test-gemini",
		ProxyAPIKey:  "test-proxy",
		ProxyBaseURL: "https://proxy.example.com",
		TextClient:   &http.Client{Transport: transport},
		MediaClient:  &http.Client{Transport: transport},
	})
}
