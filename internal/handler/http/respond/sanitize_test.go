package respond

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"anthropic key", errors.New("auth failed for sk-ant-api03-abcDEF_123"), "auth failed for sk-ant-****"},
		{"openai key", errors.New("bad key sk-abcdefghijklmnop"), "bad key sk-****"},
		{"bearer token", errors.New("rejected Bearer eyJhbGciOi.payload.sig"), "rejected Bearer ****"},
		{"dsn password", errors.New("dial postgres://app:s3cret@db:5432/x"), "dial postgres://app:****@db:5432/x"},
		{"ssn", errors.New("parse error near 123-45-6789"), "parse error near [REDACTED_SSN]"},
		{"plain", errors.New("connection refused"), "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeError(tt.err))
		})
	}
}
