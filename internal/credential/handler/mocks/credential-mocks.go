// Package mocks holds gomock doubles for the handler's Service port, in mockgen's layout.
// Running go generate on the test package rewrites this file from handler.go.
package mocks

import (
	context "context"
	reflect "reflect"

	models "vcregistry/internal/credential/models"
	domain "vcregistry/pkg/domain"

	gomock "go.uber.org/mock/gomock"
)

// MockService is a mock of Service interface.
type MockService struct {
	ctrl     *gomock.Controller
	recorder *MockServiceMockRecorder
	isgomock struct{}
}

// MockServiceMockRecorder is the mock recorder for MockService.
type MockServiceMockRecorder struct {
	mock *MockService
}

// NewMockService creates a new mock instance.
func NewMockService(ctrl *gomock.Controller) *MockService {
	mock := &MockService{ctrl: ctrl}
	mock.recorder = &MockServiceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockService) EXPECT() *MockServiceMockRecorder {
	return m.recorder
}

// GetCredential mocks base method.
func (m *MockService) GetCredential(ctx context.Context, subjectDID, cid string) (*models.CredentialView, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetCredential", ctx, subjectDID, cid)
	ret0, _ := ret[0].(*models.CredentialView)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetCredential indicates an expected call of GetCredential.
func (mr *MockServiceMockRecorder) GetCredential(ctx, subjectDID, cid any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetCredential", reflect.TypeOf((*MockService)(nil).GetCredential), ctx, subjectDID, cid)
}

// IsValid mocks base method.
func (m *MockService) IsValid(ctx context.Context, subjectDID, cid string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsValid", ctx, subjectDID, cid)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// IsValid indicates an expected call of IsValid.
func (mr *MockServiceMockRecorder) IsValid(ctx, subjectDID, cid any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsValid", reflect.TypeOf((*MockService)(nil).IsValid), ctx, subjectDID, cid)
}

// Issue mocks base method.
func (m *MockService) Issue(ctx context.Context, caller domain.CallerID, req models.IssueRequest) (*models.CredentialView, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Issue", ctx, caller, req)
	ret0, _ := ret[0].(*models.CredentialView)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Issue indicates an expected call of Issue.
func (mr *MockServiceMockRecorder) Issue(ctx, caller, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Issue", reflect.TypeOf((*MockService)(nil).Issue), ctx, caller, req)
}

// Revoke mocks base method.
func (m *MockService) Revoke(ctx context.Context, caller domain.CallerID, subjectDID, cid string) (*models.CredentialView, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Revoke", ctx, caller, subjectDID, cid)
	ret0, _ := ret[0].(*models.CredentialView)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Revoke indicates an expected call of Revoke.
func (mr *MockServiceMockRecorder) Revoke(ctx, caller, subjectDID, cid any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Revoke", reflect.TypeOf((*MockService)(nil).Revoke), ctx, caller, subjectDID, cid)
}
