package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naggery/naggery/internal/secerr"
)

type sample struct {
	Email  string `json:"email" validate:"required,email"`
	Code   string `json:"code" validate:"omitempty,len=6,numeric"`
	Secret string `json:"-" validate:"max=3"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Struct(sample{Email: "nope", Code: "12ab"})
	var verr *secerr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, secerr.ErrValidation)
	assert.Equal(t, "invalid email format", verr.Fields["email"])
	assert.Equal(t, "must be 6 characters", verr.Fields["code"])

	assert.NoError(t, v.Struct(sample{Email: "a@example.com", Code: "123456"}))
}

func TestStructPassesThroughNonStructErrors(t *testing.T) {
	err := New().Struct("not a struct")
	require.Error(t, err)
	assert.NotErrorIs(t, err, secerr.ErrValidation)
}
