// Package remote is a client for a versioned-object content API. Objects
// are addressed by path within a repository; every read returns a version
// token (a content hash) and every write must present the token it last
// read, so a stale writer fails with a conflict instead of silently
// overwriting.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultBaseURL is the content API endpoint used when the session does
// not name one.
const DefaultBaseURL = "https://api.github.com"

const defaultTimeout = 10 * time.Second

// Session carries everything a client needs to talk to the content API.
// It is passed in explicitly rather than read from process-wide state so
// credential rotation and testing stay straightforward.
type Session struct {
	BaseURL    string // API root, e.g. https://api.github.com
	Repo       string // repository in "owner/name" form
	Credential string // bearer token; may be empty for read-only use
}

// Object is the decoded form of a remote object: its content bytes and
// the version token observed at read time.
type Object struct {
	Content []byte
	Version string
}

// Client performs object reads, conditional writes, and event dispatches
// against one repository.
type Client struct {
	session Session
	http    *http.Client
}

// NewClient creates a client for the given session.
func NewClient(session Session) *Client {
	if session.BaseURL == "" {
		session.BaseURL = DefaultBaseURL
	}

	return &Client{
		session: session,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// HasCredential reports whether the session carries a bearer credential.
func (c *Client) HasCredential() bool {
	return c.session.Credential != ""
}

// getObjectResponse mirrors the content API's read payload. Content is
// base64-transported because the API requires binary-safe payloads.
type getObjectResponse struct {
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Encoding string `json:"encoding"`
}

// GetObject fetches the object at path and returns its content and
// version token. An absent object is reported as a KindNotFound error so
// callers can treat first-run state distinctly from real failures.
func (c *Client) GetObject(ctx context.Context, path string) (*Object, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.contentURL(path), nil)
	if err != nil {
		return nil, newError(KindTransient, 0, path, "failed to build request", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, newError(KindTransient, 0, path, "request failed", err)
	}
	if status != http.StatusOK {
		return nil, c.statusError(status, path, body)
	}

	var decoded getObjectResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, newError(KindMalformed, status, path, "failed to decode object envelope", err)
	}

	content, err := decodeContent(decoded.Content, decoded.Encoding)
	if err != nil {
		return nil, newError(KindMalformed, status, path, "failed to decode object content", err)
	}

	return &Object{
		Content: content,
		Version: decoded.SHA,
	}, nil
}

// putObjectRequest mirrors the content API's write payload. SHA is
// omitted when creating an object that does not yet exist.
type putObjectRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

// putObjectResponse carries the version token assigned to the written
// content.
type putObjectResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// PutObject writes content to the object at path, conditioned on
// expectedVersion. An empty expectedVersion asserts the object does not
// exist yet (create). On success the new version token is returned; a
// stale token fails with KindConflict.
func (c *Client) PutObject(ctx context.Context, path string, content []byte, expectedVersion, message string) (string, error) {
	payload, err := json.Marshal(putObjectRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     expectedVersion,
	})
	if err != nil {
		return "", newError(KindMalformed, 0, path, "failed to encode write payload", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.contentURL(path), bytes.NewReader(payload))
	if err != nil {
		return "", newError(KindTransient, 0, path, "failed to build request", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return "", newError(KindTransient, 0, path, "request failed", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", c.statusError(status, path, body)
	}

	var decoded putObjectResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", newError(KindMalformed, status, path, "failed to decode write response", err)
	}
	if decoded.Content.SHA == "" {
		return "", newError(KindMalformed, status, path, "write response carried no version token", nil)
	}

	return decoded.Content.SHA, nil
}

// Dispatch posts a repository-dispatch event, the trigger used to kick
// off a remote scraping job. It shares the session's credential and the
// same error taxonomy as object operations.
func (c *Client) Dispatch(ctx context.Context, eventType string) error {
	payload, err := json.Marshal(map[string]string{"event_type": eventType})
	if err != nil {
		return newError(KindMalformed, 0, "", "failed to encode dispatch payload", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/dispatches", c.session.BaseURL, c.session.Repo)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return newError(KindTransient, 0, "", "failed to build request", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return newError(KindTransient, 0, "", "request failed", err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return c.statusError(status, "", body)
	}

	return nil
}

// contentURL builds the object endpoint for a path within the session's
// repository.
func (c *Client) contentURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", c.session.BaseURL, c.session.Repo, url.PathEscape(path))
}

// newRequest builds a request with the session's credential and the JSON
// content type applied.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Credential)
	}

	return req, nil
}

// do executes the request and slurps the response body. Transport-level
// failures are returned as-is for the caller to wrap.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

// apiMessage is the error envelope the content API returns alongside
// failure statuses.
type apiMessage struct {
	Message string `json:"message"`
}

// statusError converts a non-success status into a classified Error,
// preferring the API's own message when one decodes.
func (c *Client) statusError(status int, path string, body []byte) *Error {
	message := http.StatusText(status)

	var decoded apiMessage
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		message = decoded.Message
	}

	return newError(Classify(status), status, path, message, nil)
}

// decodeContent unpacks a transported content payload. The API wraps
// base64 at 60 columns, so whitespace is stripped before decoding.
func decodeContent(content, encoding string) ([]byte, error) {
	switch encoding {
	case "", "none":
		return []byte(content), nil
	case "base64":
		compact := strings.Map(func(r rune) rune {
			switch r {
			case '\n', '\r', ' ', '\t':
				return -1
			}
			return r
		}, content)
		return base64.StdEncoding.DecodeString(compact)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
