// Package netx is the HTTP client for the relay API.
package netx

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/cryptox"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-success response that is neither 404 nor 409.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Memo is the GET payload with its fields decoded.
type Memo struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
	KDF        json.RawMessage
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

type memoPayload struct {
	Ciphertext string          `json:"ciphertext"`
	IV         string          `json:"iv"`
	Salt       string          `json:"salt"`
	KDF        json.RawMessage `json:"kdf"`
	CreatedAt  int64           `json:"createdAt,omitempty"`
	ExpiresAt  int64           `json:"expiresAt,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MemoClient talks to one relay server.
type MemoClient struct {
	baseURL string
	http    *http.Client
}

// NewMemoClient returns a client for the server at baseURL. A nil
// httpClient selects a client with a default timeout.
func NewMemoClient(baseURL string, httpClient *http.Client) (*MemoClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &MemoClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

// BaseURL is the server URL without a trailing slash.
func (c *MemoClient) BaseURL() string {
	return c.baseURL
}

func (c *MemoClient) memoURL(id string) string {
	return c.baseURL + "/api/memo/" + url.PathEscape(id)
}

// Health checks /api/health.
func (c *MemoClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodHead, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", common.ErrorUnavailable, resp.StatusCode)
	}
	return nil
}

// Put uploads a sealed memo under id. A taken id yields common.ErrCollision.
func (c *MemoClient) Put(ctx context.Context, id string, m *cryptox.SealedMemo) error {
	kdf, err := json.Marshal(m.KDF)
	if err != nil {
		return err
	}
	enc := base64.StdEncoding
	body, err := json.Marshal(memoPayload{
		Ciphertext: enc.EncodeToString(m.Ciphertext),
		IV:         enc.EncodeToString(m.IV),
		Salt:       enc.EncodeToString(m.Salt),
		KDF:        kdf,
	})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, c.memoURL(id), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return common.ErrCollision
	default:
		return readAPIError(resp)
	}
}

// Get fetches and thereby burns the memo under id. A missing, burned or
// expired memo yields common.ErrorNotFound.
func (c *MemoClient) Get(ctx context.Context, id string) (*Memo, error) {
	resp, err := c.do(ctx, http.MethodGet, c.memoURL(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, common.ErrorNotFound
	default:
		return nil, readAPIError(resp)
	}

	var p memoPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode memo: %w", err)
	}

	enc := base64.StdEncoding
	m := &Memo{
		KDF:       p.KDF,
		CreatedAt: time.UnixMilli(p.CreatedAt),
		ExpiresAt: time.UnixMilli(p.ExpiresAt),
	}
	if m.Ciphertext, err = enc.DecodeString(p.Ciphertext); err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if m.IV, err = enc.DecodeString(p.IV); err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	if m.Salt, err = enc.DecodeString(p.Salt); err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	return m, nil
}

// Head reports whether a live memo exists under id without consuming it.
func (c *MemoClient) Head(ctx context.Context, id string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, c.memoURL(id), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &APIError{Status: resp.StatusCode}
	}
}

func (c *MemoClient) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var p errorPayload
	if err := json.Unmarshal(b, &p); err == nil {
		e.Code, e.Message = p.Code, p.Error
	}
	return e
}

// IsAPIError reports whether err carries a server response with the given
// code.
func IsAPIError(err error, code string) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == code
}
