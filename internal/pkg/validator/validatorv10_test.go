package validator_test

import (
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyRequest struct {
	Identity string `json:"identity" validate:"required,identity"`
	Code     string `json:"otp" validate:"required,otp"`
}

func TestIsIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "+14155550100", want: true},
		{in: "+628123456789", want: true},
		{in: "user@example.com", want: true},
		{in: "14155550100", want: false},
		{in: "+0123", want: false},
		{in: "+1234567890123456", want: false},
		{in: "Bob <bob@example.com>", want: false},
		{in: "@example.com", want: false},
		{in: "user@", want: false},
		{in: "not-an-identity", want: false},
		{in: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, validator.IsIdentity(tt.in))
		})
	}
}

func TestV10Validator_Validate(t *testing.T) {
	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.Validate(verifyRequest{Identity: "+14155550100", Code: "123456"}))
	})

	t.Run("invalid fields keyed by json name", func(t *testing.T) {
		err := v.Validate(verifyRequest{Identity: "nope", Code: "12a456"})

		var verr validator.V10ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "identity must be an E.164 phone number or an email address", verr.Values()["identity"])
		assert.Equal(t, "otp must be a 6 digit code", verr.Values()["otp"])
	})

	t.Run("required", func(t *testing.T) {
		err := v.Validate(verifyRequest{})

		var verr validator.V10ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Values(), "identity")
		assert.Contains(t, verr.Values(), "otp")
	})
}

func TestV10ValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation error", validator.V10ValidationError{}.Error())
	assert.JSONEq(t, `{"otp":"bad"}`, validator.V10ValidationError{"otp": "bad"}.Error())
}

func TestIsOTPCode(t *testing.T) {
	assert.True(t, validator.IsOTPCode("012345"))
	assert.False(t, validator.IsOTPCode("12345"))
	assert.False(t, validator.IsOTPCode("1234567"))
	assert.False(t, validator.IsOTPCode("12345a"))
	assert.False(t, validator.IsOTPCode("１２３４５６"))
}

func TestV10Validator_UntaggedFieldName(t *testing.T) {
	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	type deliverInput struct {
		Identity string `validate:"required,identity"`
	}

	var verr validator.V10ValidationError
	require.ErrorAs(t, v.Validate(deliverInput{Identity: "x"}), &verr)
	assert.Contains(t, verr.Values(), "identity")
}
