package httpclient

import (
	"io"
	"net/http"

	"github.com/kbukum/scribe/httpclient/sse"
)

// Request describes an outbound request.
type Request struct {
	Method string
	// Path is joined to the base URL unless it is absolute.
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body accepts *MultipartBody, io.Reader, []byte, string, or a value to
	// encode as JSON.
	Body any
	Auth *AuthConfig
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StreamResponse is an open streaming response. SSE is set for
// text/event-stream bodies, Body otherwise.
type StreamResponse struct {
	StatusCode int
	Headers    map[string]string
	SSE        sse.Reader
	Body       io.ReadCloser
	rawResp    *http.Response
}

// Close releases the underlying connection.
func (r *StreamResponse) Close() error {
	switch {
	case r.SSE != nil:
		return r.SSE.Close()
	case r.Body != nil:
		return r.Body.Close()
	case r.rawResp != nil && r.rawResp.Body != nil:
		return r.rawResp.Body.Close()
	}
	return nil
}
