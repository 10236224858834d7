// Package client is a Go client for the credential registry HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"vcregistry/internal/credential/models"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/platform/httputil"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 2
)

// Client calls the registry API. Token is only needed for Issue and Revoke.
//
// Revoke and the read calls are retried on timeout and unavailable errors.
// Issue is not: a retried issue that already landed would come back as a
// conflict.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retries    uint64
	backoff    func() backoff.BackOff
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetries sets how many times an idempotent call is retried. Zero
// disables retries.
func WithRetries(n uint64) Option {
	return func(c *Client) {
		c.retries = n
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		retries:    defaultRetries,
		backoff:    newRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type issueBody struct {
	SubjectDID string `json:"subject_did"`
	CID        string `json:"cid"`
	ExpiresAt  *int64 `json:"expires_at"`
}

type lookupBody struct {
	SubjectDID string `json:"subject_did"`
	CID        string `json:"cid"`
}

// Issue registers a credential. expiresAt is unix ms; nil never expires.
func (c *Client) Issue(ctx context.Context, subjectDID, cid string, expiresAt *int64) (*models.CredentialView, error) {
	var view models.CredentialView
	err := c.do(ctx, http.MethodPost, "/credentials", nil,
		issueBody{SubjectDID: subjectDID, CID: cid, ExpiresAt: expiresAt}, http.StatusCreated, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Revoke(ctx context.Context, subjectDID, cid string) (*models.CredentialView, error) {
	var view models.CredentialView
	err := c.doIdempotent(ctx, http.MethodPost, "/credentials/revoke", nil,
		lookupBody{SubjectDID: subjectDID, CID: cid}, http.StatusOK, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) IsValid(ctx context.Context, subjectDID, cid string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := c.doIdempotent(ctx, http.MethodGet, "/credentials/validity", lookupQuery(subjectDID, cid), nil, http.StatusOK, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// GetCredential returns nil, nil when the registry has no such credential.
func (c *Client) GetCredential(ctx context.Context, subjectDID, cid string) (*models.CredentialView, error) {
	var view models.CredentialView
	err := c.doIdempotent(ctx, http.MethodGet, "/credentials", lookupQuery(subjectDID, cid), nil, http.StatusOK, &view)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func lookupQuery(subjectDID, cid string) url.Values {
	return url.Values{"subject_did": {subjectDID}, "cid": {cid}}
}

func newRetryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func (c *Client) doIdempotent(ctx context.Context, method, path string, query url.Values, body any, wantStatus int, out any) error {
	if c.retries == 0 {
		return c.do(ctx, method, path, query, body, wantStatus, out)
	}
	op := func() error {
		err := c.do(ctx, method, path, query, body, wantStatus, out)
		if err != nil && !dErrors.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), c.retries), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, wantStatus int, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeError turns the error envelope back into a domain error so callers
// can use dErrors.HasCode on client results.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best effort, status is enough
	var envelope httputil.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error == "" {
		return dErrors.Newf(statusToCode(resp.StatusCode), "request failed with code %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	msg := envelope.ErrorDescription
	if msg == "" {
		msg = envelope.Error
	}
	return dErrors.New(envelopeToCode(envelope.Error, resp.StatusCode), msg)
}

func envelopeToCode(code string, status int) dErrors.Code {
	switch code {
	case "not_found":
		return dErrors.CodeNotFound
	case "bad_request", "request_too_large", "invalid_content_type":
		return dErrors.CodeBadRequest
	case "invalid_input":
		return dErrors.CodeInvalidInput
	case "validation_error":
		return dErrors.CodeValidation
	case "already_exists":
		return dErrors.CodeConflict
	case "unauthorized":
		return dErrors.CodeUnauthorized
	case "forbidden":
		return dErrors.CodeForbidden
	case "timeout":
		return dErrors.CodeTimeout
	case "unavailable":
		return dErrors.CodeUnavailable
	}
	return statusToCode(status)
}

func statusToCode(status int) dErrors.Code {
	switch status {
	case http.StatusNotFound:
		return dErrors.CodeNotFound
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return dErrors.CodeBadRequest
	case http.StatusConflict:
		return dErrors.CodeConflict
	case http.StatusUnauthorized:
		return dErrors.CodeUnauthorized
	case http.StatusForbidden:
		return dErrors.CodeForbidden
	case http.StatusGatewayTimeout:
		return dErrors.CodeTimeout
	case http.StatusServiceUnavailable:
		return dErrors.CodeUnavailable
	default:
		return dErrors.CodeInternal
	}
}
