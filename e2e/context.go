package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vcregistry/internal/credential/handler"
	"vcregistry/internal/credential/metrics"
	"vcregistry/internal/credential/service"
	"vcregistry/internal/credential/store"
	jwttoken "vcregistry/internal/jwt_token"
	"vcregistry/internal/platform/config"
	"vcregistry/internal/platform/health"
	httptransport "vcregistry/internal/transport/http"
	id "vcregistry/pkg/domain"
	"vcregistry/pkg/platform/middleware/request"
)

const signingKey = "e2e-signing-key"

// logicalClock is moved by scenario steps between requests.
type logicalClock struct {
	ms atomic.Int64
}

func (c *logicalClock) Now() time.Time { return time.UnixMilli(c.ms.Load()) }

// TestContext holds state between test steps
type TestContext struct {
	server           *httptest.Server
	jwt              *jwttoken.JWTService
	clock            *logicalClock
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	AccessToken      string
}

// NewTestContext wires a fresh registry behind an in-process HTTP server.
func NewTestContext() *TestContext {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	svc := service.New(store.NewInMemoryStore(),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
	)
	jwt := jwttoken.NewJWTService(signingKey, "vcregistry", "vcregistry-api", time.Hour)
	clk := &logicalClock{}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Credentials:    handler.New(svc, logger),
		Health:         health.New("e2e", config.StoreMemory),
		TokenValidator: jwttoken.NewJWTServiceAdapter(jwt),
		Clock:          clk,
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
	})
	server := httptest.NewServer(router)

	return &TestContext{
		server:     server,
		jwt:        jwt,
		clock:      clk,
		HTTPClient: server.Client(),
	}
}

// Close stops the in-process server.
func (tc *TestContext) Close() {
	tc.server.Close()
}

// SetClock sets the logical time, in milliseconds, seen by the next request.
func (tc *TestContext) SetClock(ms int64) {
	tc.clock.ms.Store(ms)
}

// SignIn mints a bearer token for caller. An empty caller clears the token.
func (tc *TestContext) SignIn(caller string) error {
	if caller == "" {
		tc.AccessToken = ""
		return nil
	}
	token, _, err := tc.jwt.GenerateCallerToken(context.Background(), id.CallerID(caller))
	if err != nil {
		return fmt.Errorf("failed to mint token for %s: %w", caller, err)
	}
	tc.AccessToken = token
	return nil
}

// POST makes an authenticated POST request and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, tc.server.URL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.AccessToken)
	}
	return tc.do(req)
}

// GET makes an unauthenticated GET request and stores the response
func (tc *TestContext) GET(path string, query url.Values) error {
	target := tc.server.URL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}
