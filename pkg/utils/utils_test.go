package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email string `validate:"required,email"`
	Code  string `validate:"required,invitation_code"`
}

func TestValidator_CustomTag(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.RegisterTag("invitation_code", func(value string) bool { return value == "open-sesame" }))

	assert.NoError(t, v.Struct(signup{Email: "a@example.com", Code: "open-sesame"}))

	err := v.Struct(signup{Email: "not-an-email", Code: "guess"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "code is not a valid invitation code")
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Title string `validate:"required,max=5"`
	}

	assert.NoError(t, ValidateStruct(input{Title: "ok"}))
	assert.EqualError(t, ValidateStruct(input{}), "title is required")
	assert.EqualError(t, ValidateStruct(input{Title: "too long"}), "title must be at most 5")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}
