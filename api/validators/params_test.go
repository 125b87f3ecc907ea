package validators

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func withParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUIDParam(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "orderId", id.String()), "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "orderId", "nope"), "orderId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUID(t *testing.T) {
	got, err := ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "userId")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/?userId=x", nil), "userId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	var dest struct {
		Quantity int `json:"quantity" validate:"required,min=1"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`))
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"quantity": "is required"}, typed.Details())
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required,max=3"`
	}
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"name":"ab","extra":1}`,
		"trailing data": `{"name":"ab"}{"name":"cd"}`,
		"wrong type":    `{"name":5}`,
		"too long":      `{"name":"abcd"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest payload
			err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	var dest payload
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abcd"}`)), &dest)
	assert.Equal(t, map[string]string{"name": "must be at most 3 characters"}, pkgerrors.As(err).Details())
}

func TestDecodeOptionalJSONBodyAllowsEmpty(t *testing.T) {
	var dest struct {
		Notes string `json:"notes"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, DecodeOptionalJSONBody(req, &dest))
	assert.Empty(t, dest.Notes)
}

func TestParseMultipartFilesLimitsCount(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < 3; i++ {
		part, err := mw.CreateFormFile("images", "a.jpg")
		require.NoError(t, err)
		_, _ = part.Write([]byte{0xFF, 0xD8, 0xFF})
	}
	require.NoError(t, mw.Close())

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(buf.Bytes()))
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	files, err := ParseMultipartFiles(newReq(), "images", 3)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = ParseMultipartFiles(newReq(), "images", 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?limit=25", nil)
	got, err := ParseQueryInt(req, "limit", 50, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	got, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders", nil), "limit", 50, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, got)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders?limit=500", nil), "limit", 50, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders?limit=ten", nil), "limit", 50, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "left at door", SanitizeString("  left at door\x00 ", 0))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 100))
	assert.Equal(t, "héllo", SanitizeString("héllo wörld", 5))
}
