package integration

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	fatal := &UpstreamFatalError{StatusCode: 402, Endpoint: "/admin/api/orders.json"}

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("missing customer"), ErrorKindValidation},
		{"configuration", NewConfigurationError("tax_accounts", "missing %s", "VAT"), ErrorKindConfiguration},
		{"fatal", fatal, ErrorKindUpstreamFatal},
		{"wrapped fatal", fmt.Errorf("validate order 1: %w", fatal), ErrorKindUpstreamFatal},
		{"fatal inside transient", &TransientDocumentError{Step: "sales_invoice", Err: fatal}, ErrorKindUpstreamFatal},
		{"transient", &TransientDocumentError{Step: "sales_order", Err: errors.New("db down")}, ErrorKindTransientDocument},
		{"configuration inside transient", &TransientDocumentError{Step: "sales_order", Err: NewConfigurationError("x", "y")}, ErrorKindConfiguration},
		{"unknown", errors.New("boom"), ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsUpstreamFatal(t *testing.T) {
	fatal := &UpstreamFatalError{StatusCode: 429, Err: ErrPlatformRequestFailed}

	assert.True(t, IsUpstreamFatal(fatal))
	assert.True(t, IsUpstreamFatal(fmt.Errorf("fetch orders: %w", fatal)))
	assert.False(t, IsUpstreamFatal(ErrPlatformRequestFailed))
	assert.False(t, IsUpstreamFatal(nil))
	assert.True(t, errors.Is(fatal, ErrPlatformRequestFailed))
}

func TestUpstreamFatalError_Message(t *testing.T) {
	err := &UpstreamFatalError{StatusCode: 402, Endpoint: "/orders.json"}
	assert.Equal(t, "integration: upstream refused request (HTTP 402) on /orders.json", err.Error())
}

func TestConfigurationError_Message(t *testing.T) {
	assert.Equal(t, "tax_accounts: no account for \"VAT\"",
		NewConfigurationError("tax_accounts", "no account for %q", "VAT").Error())
	assert.Equal(t, "plain", (&ConfigurationError{Message: "plain"}).Error())
}
