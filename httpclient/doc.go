// Package httpclient is the HTTP transport shared by scribe's remote
// backends: the inference services, the health checker and the local LLM
// client.
//
//	c, _ := httpclient.New(httpclient.Config{BaseURL: "http://localhost:8000"})
//	resp, err := c.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
//
// Failures are *Error values classified by status code, and multipart
// uploads use *MultipartBody as the request body.
package httpclient
