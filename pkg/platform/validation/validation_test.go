package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "vcregistry/pkg/domain-errors"
)

type settings struct {
	Backend string        `env:"STORE_BACKEND" validate:"oneof=memory postgres"`
	Timeout time.Duration `env:"TX_TIMEOUT" validate:"gt=0"`
	Retries int           `json:"retries" validate:"gte=0"`
	Note    string        `validate:"required"`
}

type ValidationSuite struct {
	suite.Suite
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationSuite))
}

func valid() settings {
	return settings{Backend: "memory", Timeout: time.Second, Note: "x"}
}

func (s *ValidationSuite) TestMessages() {
	cases := []struct {
		name   string
		mutate func(*settings)
		want   string
	}{
		{"oneof names the env var and value", func(c *settings) { c.Backend = "etcd" }, `STORE_BACKEND must be one of [memory postgres], got "etcd"`},
		{"gt", func(c *settings) { c.Timeout = 0 }, "TX_TIMEOUT must be greater than 0"},
		{"json name wins over env", func(c *settings) { c.Retries = -1 }, "retries must be at least 0"},
		{"unnamed field uses struct name", func(c *settings) { c.Note = "" }, "Note is required"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			cfg := valid()
			tc.mutate(&cfg)

			err := Validate(cfg)

			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Equal(tc.want, err.Error())
		})
	}
}

func (s *ValidationSuite) TestValidPasses() {
	s.NoError(Validate(valid()))
}

func (s *ValidationSuite) TestErrorMessageFallback() {
	s.Equal("invalid request body", ErrorMessage(nil))
}
