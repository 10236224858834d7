package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/metrics"
	"vcregistry/internal/credential/models"
	"vcregistry/internal/credential/service"
	"vcregistry/internal/credential/service/mocks"
	"vcregistry/internal/credential/store"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/requestcontext"
	"vcregistry/pkg/testutil"
)

// PortSuite drives the service against mocked ports to cover failure paths
// the in-memory store never produces.
type PortSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockEventPublisher
	metrics   *metrics.Metrics
	service   *service.Service
}

func TestPortSuite(t *testing.T) {
	suite.Run(t, new(PortSuite))
}

func (s *PortSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = service.New(s.store,
		service.WithPublisher(s.publisher),
		service.WithMetrics(s.metrics),
	)
}

func (s *PortSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PortSuite) ctx() context.Context {
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	return requestcontext.WithTime(ctx, models.Timestamp(7_000).Time())
}

func (s *PortSuite) issueRequest() models.IssueRequest {
	return models.IssueRequest{SubjectDID: testutil.SubjectAlice, CID: testutil.CIDDegree}
}

func (s *PortSuite) TestIssuePublishesEvent() {
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, evt contract.Event) error {
			s.Equal(contract.EventIssued, evt.Type)
			s.Equal(contract.ContractVersion, evt.Version)
			s.Equal(models.KeyFor(testutil.SubjectAlice, testutil.CIDDegree).String(), evt.Key)
			s.Equal(testutil.IssuerUniversity.String(), evt.Actor)
			s.Equal(int64(7_000), evt.IssuedAt)
			s.Equal("req-42", evt.RequestID)
			s.NotEmpty(evt.ID)
			return nil
		})

	_, err := s.service.Issue(s.ctx(), testutil.IssuerUniversity, s.issueRequest())
	s.Require().NoError(err)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.CredentialsIssued))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues(string(contract.EventIssued), "ok")))
}

func (s *PortSuite) TestIssueSucceedsWhenPublishFails() {
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	view, err := s.service.Issue(s.ctx(), testutil.IssuerUniversity, s.issueRequest())
	s.Require().NoError(err)
	s.NotNil(view)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues(string(contract.EventIssued), "error")))
}

func (s *PortSuite) TestIssueStoreErrors() {
	tests := []struct {
		name     string
		storeErr error
		wantCode dErrors.Code
	}{
		{"duplicate key", store.ErrAlreadyExists, dErrors.CodeConflict},
		{"deadline", context.DeadlineExceeded, dErrors.CodeTimeout},
		{"driver failure", errors.New("connection reset"), dErrors.CodeInternal},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(tt.storeErr)

			_, err := s.service.Issue(s.ctx(), testutil.IssuerUniversity, s.issueRequest())
			s.True(dErrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func (s *PortSuite) TestRevokeForeignCallerDoesNotWrite() {
	existing := testutil.NewTestCredential(testutil.SubjectAlice, testutil.IssuerUniversity, testutil.CIDDegree)
	s.store.EXPECT().FindByKey(gomock.Any(), existing.Key()).Return(&existing, nil)

	_, err := s.service.Revoke(s.ctx(), testutil.IssuerEmployer, existing.SubjectDID, existing.CID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Rejections.WithLabelValues("revoke", string(dErrors.CodeForbidden))))
}

func (s *PortSuite) TestRevokeWritesFullRecord() {
	existing := testutil.NewCredentialBuilder().ExpiresAt(9_000).Build()
	s.store.EXPECT().FindByKey(gomock.Any(), existing.Key()).Return(&existing, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c models.Credential) error {
			s.True(c.Revoked)
			s.Equal(existing.Issuer, c.Issuer)
			s.Equal(existing.IssuedAt, c.IssuedAt)
			s.Require().NotNil(c.ExpiresAt)
			s.Equal(models.Timestamp(9_000), *c.ExpiresAt)
			return nil
		})
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, evt contract.Event) error {
			s.Equal(contract.EventRevoked, evt.Type)
			s.True(evt.Revoked)
			s.Equal(int64(7_000), evt.OccurredAt)
			return nil
		})

	view, err := s.service.Revoke(s.ctx(), existing.Issuer, existing.SubjectDID, existing.CID)
	s.Require().NoError(err)
	s.True(view.Revoked)
}

func (s *PortSuite) TestRepeatRevokeDoesNotPublish() {
	existing := testutil.NewCredentialBuilder().Revoked().Build()
	s.store.EXPECT().FindByKey(gomock.Any(), existing.Key()).Return(&existing, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	view, err := s.service.Revoke(s.ctx(), existing.Issuer, existing.SubjectDID, existing.CID)
	s.Require().NoError(err)
	s.True(view.Revoked)
}

func (s *PortSuite) TestRevokeMissing() {
	s.store.EXPECT().FindByKey(gomock.Any(), gomock.Any()).Return(nil, store.ErrNotFound)

	_, err := s.service.Revoke(s.ctx(), testutil.IssuerUniversity, testutil.SubjectAlice, testutil.CIDDegree)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PortSuite) TestRevokeUpdateFailure() {
	existing := testutil.NewTestCredential(testutil.SubjectAlice, testutil.IssuerUniversity, testutil.CIDDegree)
	s.store.EXPECT().FindByKey(gomock.Any(), gomock.Any()).Return(&existing, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := s.service.Revoke(s.ctx(), existing.Issuer, existing.SubjectDID, existing.CID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *PortSuite) TestReadsTranslateStoreFailure() {
	s.store.EXPECT().FindByKey(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout talking to redis")).Times(2)

	_, err := s.service.IsValid(s.ctx(), testutil.SubjectAlice, testutil.CIDDegree)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.service.GetCredential(s.ctx(), testutil.SubjectAlice, testutil.CIDDegree)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *PortSuite) TestValidityMetrics() {
	valid := testutil.NewTestCredential(testutil.SubjectAlice, testutil.IssuerUniversity, testutil.CIDDegree)
	s.store.EXPECT().FindByKey(gomock.Any(), gomock.Any()).Return(&valid, nil)
	s.store.EXPECT().FindByKey(gomock.Any(), gomock.Any()).Return(nil, store.ErrNotFound)

	ok, err := s.service.IsValid(s.ctx(), testutil.SubjectAlice, testutil.CIDDegree)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.service.IsValid(s.ctx(), testutil.SubjectBob, testutil.CIDDegree)
	s.Require().NoError(err)
	s.False(ok)

	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.ValidityChecks.WithLabelValues(metrics.ResultValid)))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.ValidityChecks.WithLabelValues(metrics.ResultMissing)))
}

func (s *PortSuite) TestInvalidInputNeverTouchesStore() {
	_, err := s.service.IsValid(s.ctx(), "", testutil.CIDDegree)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = s.service.Revoke(s.ctx(), testutil.IssuerUniversity, testutil.SubjectAlice, "short")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
