package domainerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite follows errors the way they travel through the registry:
// a store failure wrapped by the service, then read back by the handler.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestMessage() {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"explicit message", New(CodeConflict, "credential already issued"), "credential already issued"},
		{"falls back to code", &Error{Code: CodeForbidden}, "forbidden"},
		{"formatted", Newf(CodeInvalidInput, "cid must be longer than %d bytes", 10), "cid must be longer than 10 bytes"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, tc.err.Error())
		})
	}
}

func (s *DomainErrorsSuite) TestWrapKeepsInnermostCode() {
	storeErr := errors.New("pq: duplicate key value violates unique constraint")
	conflict := Wrap(storeErr, CodeConflict, "credential already issued")
	outer := Wrap(conflict, CodeInternal, "issue failed")

	s.Equal(CodeConflict, CodeOf(outer))
	s.Equal("issue failed", outer.Error())
	s.ErrorIs(outer, storeErr, "root cause stays reachable")
	s.ErrorIs(outer, &Error{Code: CodeConflict})
	s.NotErrorIs(outer, &Error{Code: CodeNotFound})
}

func (s *DomainErrorsSuite) TestIsMatchesOnCodeOnly() {
	a := &Error{Code: CodeNotFound, Message: "credential not found"}
	s.True(a.Is(&Error{Code: CodeNotFound, Message: "anything"}))
	s.False(a.Is(&Error{Code: CodeInternal}))
	s.False(a.Is(errors.New("not_found")))
}

func (s *DomainErrorsSuite) TestCodeInspection() {
	wrappedByFmt := fmt.Errorf("revoke: %w", New(CodeForbidden, "only the issuer may revoke"))

	cases := []struct {
		name      string
		err       error
		code      Code
		hasCode   Code
		retryable bool
	}{
		{"nil", nil, CodeInternal, "", false},
		{"plain error", errors.New("boom"), CodeInternal, "", false},
		{"through fmt wrapping", wrappedByFmt, CodeForbidden, CodeForbidden, false},
		{"timeout", Wrap(context.DeadlineExceeded, CodeTimeout, "store timed out"), CodeTimeout, CodeTimeout, true},
		{"unavailable", New(CodeUnavailable, "under concurrent modification"), CodeUnavailable, CodeUnavailable, true},
		{"validation", New(CodeValidation, "subject_did is required"), CodeValidation, CodeValidation, false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.code, CodeOf(tc.err))
			s.Equal(tc.retryable, Retryable(tc.err))
			if tc.hasCode != "" {
				s.True(HasCode(tc.err, tc.hasCode))
			}
			s.False(HasCode(tc.err, CodeNotFound))
		})
	}
}

func (s *DomainErrorsSuite) TestUnwrap() {
	root := errors.New("redis: connection refused")
	err := Wrap(root, CodeUnavailable, "store unreachable")
	s.Equal(root, errors.Unwrap(err))
	s.Nil(errors.Unwrap(New(CodeNotFound, "credential not found")))
}
