package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(sample{Email: "a@example.com", Password: "longenough"}))

	err := v.Validate(sample{Email: "nope", Password: "short"})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "email must be a valid email address")
	assert.Contains(t, verr.Message, "password must be at least 8 characters")
}
