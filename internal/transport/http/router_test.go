package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"vcregistry/internal/credential/handler"
	"vcregistry/internal/credential/metrics"
	"vcregistry/internal/credential/service"
	"vcregistry/internal/credential/store"
	"vcregistry/internal/platform/config"
	"vcregistry/internal/platform/health"
	jwttoken "vcregistry/internal/jwt_token"
	id "vcregistry/pkg/domain"
	"vcregistry/pkg/platform/middleware/request"
)

// settableClock lets a test move logical time between requests.
type settableClock struct {
	ms atomic.Int64
}

func (c *settableClock) Now() time.Time { return time.UnixMilli(c.ms.Load()) }
func (c *settableClock) Set(ms int64)   { c.ms.Store(ms) }

// RouterSuite drives the fully wired router over the in-memory store.
type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	jwt    *jwttoken.JWTService
	clock  *settableClock
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	svc := service.New(store.NewInMemoryStore(),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
	)
	s.jwt = jwttoken.NewJWTService("router-test-signing-key", "vcregistry", "vcregistry-api", time.Hour)
	s.clock = &settableClock{}
	s.clock.Set(1_000)

	router := NewRouter(Deps{
		Logger:         logger,
		Credentials:    handler.New(svc, logger),
		Health:         health.New("test", config.StoreMemory),
		TokenValidator: jwttoken.NewJWTServiceAdapter(s.jwt),
		Clock:          s.clock,
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
		MaxBodyBytes:   1024,
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
}

func (s *RouterSuite) token(caller id.CallerID) string {
	tok, _, err := s.jwt.GenerateCallerToken(context.Background(), caller)
	s.Require().NoError(err)
	return tok
}

func (s *RouterSuite) do(method, path, token string, body []byte) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *RouterSuite) decode(resp *http.Response) map[string]any {
	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *RouterSuite) TestMutationsRequireBearerToken() {
	body := []byte(`{"subject_did":"did:example:alice","cid":"QmDegreeCredential01"}`)

	resp := s.do(http.MethodPost, "/credentials", "", body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("unauthorized", s.decode(resp)["error"])

	resp = s.do(http.MethodPost, "/credentials/revoke", "not-a-jwt", body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestLongIdentifiersAreOpaque() {
	issuer := s.token("did:example:university")
	subject := "did:example:" + strings.Repeat("s", 3000)
	cid := "bafy" + strings.Repeat("c", 598)
	body, err := json.Marshal(map[string]string{"subject_did": subject, "cid": cid})
	s.Require().NoError(err)

	// Default body cap; the suite router's 1 KiB cap is too small for this body.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.server = httptest.NewServer(NewRouter(Deps{
		Logger:         logger,
		Credentials:    handler.New(service.New(store.NewInMemoryStore()), logger),
		TokenValidator: jwttoken.NewJWTServiceAdapter(s.jwt),
		Clock:          s.clock,
		MaxBodyBytes:   64 << 10,
	}))
	s.T().Cleanup(s.server.Close)

	resp := s.do(http.MethodPost, "/credentials", issuer, body)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(cid, s.decode(resp)["cid"])

	q := url.Values{"subject_did": {subject}, "cid": {cid}}
	resp = s.do(http.MethodGet, "/credentials/validity?"+q.Encode(), "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, s.decode(resp)["valid"])
}

func (s *RouterSuite) TestIssueValidateRevoke() {
	issuer := s.token("did:example:university")
	body := []byte(`{"subject_did":"did:example:alice","cid":"QmDegreeCredential01","expires_at":50000}`)

	resp := s.do(http.MethodPost, "/credentials", issuer, body)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	view := s.decode(resp)
	s.Equal("did:example:university", view["issuer"])
	s.EqualValues(1_000, view["issued_at"])
	s.NotEmpty(resp.Header.Get("X-Request-ID"))

	s.clock.Set(2_000)
	resp = s.do(http.MethodGet, "/credentials/validity?subject_did=did:example:alice&cid=QmDegreeCredential01", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, s.decode(resp)["valid"])

	resp = s.do(http.MethodPost, "/credentials/revoke", s.token("did:example:employer"),
		[]byte(`{"subject_did":"did:example:alice","cid":"QmDegreeCredential01"}`))
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.do(http.MethodPost, "/credentials/revoke", issuer,
		[]byte(`{"subject_did":"did:example:alice","cid":"QmDegreeCredential01"}`))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, s.decode(resp)["revoked"])

	resp = s.do(http.MethodGet, "/credentials/validity?subject_did=did:example:alice&cid=QmDegreeCredential01", "", nil)
	s.Equal(false, s.decode(resp)["valid"])
}

func (s *RouterSuite) TestExpiryUsesRequestClock() {
	resp := s.do(http.MethodPost, "/credentials", s.token("did:example:university"),
		[]byte(`{"subject_did":"did:example:alice","cid":"QmDegreeCredential01","expires_at":5000}`))
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	s.clock.Set(5_000)
	resp = s.do(http.MethodGet, "/credentials/validity?subject_did=did:example:alice&cid=QmDegreeCredential01", "", nil)
	s.Equal(false, s.decode(resp)["valid"])
}

func (s *RouterSuite) TestOversizedBody() {
	big := bytes.Repeat([]byte("a"), 2048)
	body := append([]byte(`{"subject_did":"`), big...)
	body = append(body, []byte(`","cid":"QmDegreeCredential01"}`)...)

	resp := s.do(http.MethodPost, "/credentials", s.token("did:example:university"), body)
	s.Equal(http.StatusRequestEntityTooLarge, resp.StatusCode)
	s.Equal("request_too_large", s.decode(resp)["error"])
}

func (s *RouterSuite) TestNonJSONContentType() {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/credentials", bytes.NewReader([]byte("x")))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+s.token("did:example:university"))
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}

func (s *RouterSuite) TestOperationalEndpoints() {
	resp := s.do(http.MethodGet, "/health/live", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/health/ready", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	// Generate one observation so the histograms are exported.
	s.do(http.MethodGet, "/credentials?subject_did=did:example:alice&cid=QmDegreeCredential01", "", nil)

	resp = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(raw), "vcreg_store_operation_duration_seconds")
}
