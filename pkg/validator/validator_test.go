package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addEntryRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=200"`
	Image    string `json:"image" validate:"omitempty,url"`
	Cost     string `json:"cost" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0,lte=100"`
}

func validRequest() addEntryRequest {
	return addEntryRequest{
		Name:     "Snake Plant",
		Image:    "https://img.example.com/snake.jpg",
		Cost:     "$15.00",
		Quantity: 1,
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validRequest()))
}

func TestValidate_MissingRequired_UsesJSONName(t *testing.T) {
	s := validRequest()
	s.Cost = ""

	fields := fieldErrors(t, Validate(s))
	assert.Equal(t, "is required", fields["cost"])
}

func TestValidate_NotBlank(t *testing.T) {
	s := validRequest()
	s.Name = "   "

	fields := fieldErrors(t, Validate(s))
	assert.Equal(t, "must not be blank", fields["name"])
}

func TestValidate_InvalidURL(t *testing.T) {
	s := validRequest()
	s.Image = "not a url"

	fields := fieldErrors(t, Validate(s))
	assert.Equal(t, "must be a valid URL", fields["image"])
}

func TestValidate_OutOfRange(t *testing.T) {
	s := validRequest()
	s.Quantity = 101

	fields := fieldErrors(t, Validate(s))
	assert.Contains(t, fields["quantity"], "100")
}

func TestValidate_MultipleErrors(t *testing.T) {
	fields := fieldErrors(t, Validate(addEntryRequest{Quantity: -1}))

	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "cost")
	assert.Contains(t, fields, "quantity")
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(addEntryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name'")
	assert.Contains(t, err.Error(), "is required")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"name":"Basil","cost":"$3.00","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var s addEntryRequest
	err := DecodeAndValidate(req, &s)

	require.NoError(t, err)
	assert.Equal(t, "Basil", s.Name)
	assert.Equal(t, "$3.00", s.Cost)
	assert.Equal(t, 2, s.Quantity)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var s addEntryRequest
	err := DecodeAndValidate(req, &s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Basil","cost":"$1","price":1}`))

	var s addEntryRequest
	err := DecodeAndValidate(req, &s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","cost":"$1"}`))

	var s addEntryRequest
	err := DecodeAndValidate(req, &s)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
