package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
		CodeUnauthorized:      {http.StatusUnauthorized, false, "authentication required", false},
		CodeStateConflict:     {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
		CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
		CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true},
		CodeInsufficientStock: {http.StatusConflict, false, "insufficient stock", true},
		CodeInvalidSignature:  {http.StatusBadRequest, false, "invalid signature", false},
		CodeGatewayTimeout:    {http.StatusGatewayTimeout, true, "payment gateway timed out", false},
		CodeRefundGateway:     {http.StatusBadGateway, true, "refund could not be processed", true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), "code %s", code)
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestEveryDeclaredCodeHasMetadata(t *testing.T) {
	for code, meta := range metadataByCode {
		assert.NotZero(t, meta.HTTPStatus, "code %s", code)
		assert.NotEmpty(t, meta.PublicMessage, "code %s", code)
	}
}

func TestErrorCarriesCodeMessageAndCause(t *testing.T) {
	plain := New(CodeValidation, "missing sku")
	assert.Equal(t, CodeValidation, plain.Code())
	assert.Equal(t, "missing sku", plain.Message())
	assert.Nil(t, plain.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing sku", plain.Error())

	plain.WithDetails(map[string]string{"skuId": "is required"})
	assert.Equal(t, map[string]string{"skuId": "is required"}, plain.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: reserve: boom", wrapped.Error())

	assert.Nil(t, Wrap(CodeConflict, nil, "noop").Unwrap())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Error())
}

func TestAsFindsOutermostTypedError(t *testing.T) {
	inner := New(CodeNotFound, "order")
	outer := fmt.Errorf("load: %w", Wrap(CodeForbidden, inner, "not yours"))

	got := As(outer)
	require.NotNil(t, got)
	assert.Equal(t, CodeForbidden, got.Code())
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestIsCodeWalksTypedCauses(t *testing.T) {
	inner := New(CodeGatewayTimeout, "stripe timed out")
	outer := fmt.Errorf("approve: %w", Wrap(CodeRefundGateway, inner, "refund failed"))

	assert.True(t, IsCode(outer, CodeRefundGateway))
	assert.True(t, IsCode(outer, CodeGatewayTimeout))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(outer, ""))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}
