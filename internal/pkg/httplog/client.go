// Package httplog provides the HTTP seam used by API clients: an HTTPDoer
// interface and a wrapper that traces every exchange at DEBUG level with
// credentials stripped.
package httplog

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edevtech/smsdrop-go/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *LoggingClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 4096

// LoggingClient wraps an HTTPDoer and logs each request and response.
// It never retries and never alters the exchange.
type LoggingClient struct {
	client HTTPDoer
	log    *logger.Logger
}

// NewLoggingClient wraps client. If client is nil, a default http.Client with
// a 15s timeout is used. If log is nil, the package default logger is used.
func NewLoggingClient(client HTTPDoer, log *logger.Logger) *LoggingClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.Default()
	}
	return &LoggingClient{client: client, log: log}
}

// Do executes req through the wrapped client. Bodies are buffered only when
// DEBUG is enabled, and are restored so the caller still reads them in full.
func (lc *LoggingClient) Do(req *http.Request) (*http.Response, error) {
	if !lc.log.Enabled(logger.DEBUG) {
		return lc.client.Do(req)
	}

	lc.log.Debug("http request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"authorization", req.Header.Get("Authorization"),
		"body", requestBody(req),
	)

	start := time.Now()
	resp, err := lc.client.Do(req)
	if err != nil {
		lc.log.Debug("http request failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"error", err,
		)
		return nil, err
	}

	var body []byte
	if resp.Body != nil {
		var readErr error
		body, readErr = io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			// The caller sees the same bytes and then the same failure.
			resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), errReader{readErr}))
			lc.log.Debug("http response body failed",
				"method", req.Method,
				"url", req.URL.Redacted(),
				"status", resp.StatusCode,
				"read", len(body),
				"error", readErr,
			)
			return resp, nil
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	lc.log.Debug("http response",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
		"body", responseBody(body),
	)
	return resp, nil
}

// errReader fails every read with err.
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// requestBody returns a loggable copy of the request body. Form bodies have
// their password field masked.
func requestBody(req *http.Request) string {
	if req.Body == nil || req.GetBody == nil {
		return ""
	}
	rc, err := req.GetBody()
	if err != nil {
		return ""
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}
	if req.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		if form, err := url.ParseQuery(string(raw)); err == nil {
			if form.Has("password") {
				form.Set("password", "[REDACTED]")
			}
			if form.Has("username") {
				form.Set("username", logger.RedactEmail(form.Get("username")))
			}
			if form.Has("client_secret") {
				form.Set("client_secret", "[REDACTED]")
			}
			return truncate([]byte(form.Encode()))
		}
	}
	return truncate(raw)
}

// responseBody masks token fields of a JSON object body, such as the
// access_token returned by a login.
func responseBody(body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return truncate(body)
	}
	masked := false
	for key := range obj {
		if strings.Contains(strings.ToLower(key), "token") {
			obj[key] = json.RawMessage(`"[REDACTED]"`)
			masked = true
		}
	}
	if !masked {
		return truncate(body)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return truncate(out)
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
