package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type limitsRequest struct {
	Daily   int    `validate:"gte=0"`
	Title   string `validate:"required"`
	Session string `validate:"omitempty,uuid"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(limitsRequest{Daily: -1, Session: "not-a-uuid"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Daily must be greater than or equal to 0")
	assert.Contains(t, resp.Error, "field Title is a required field")
	assert.Contains(t, resp.Error, "field Session can contain only uuid")
}

func TestConstructors(t *testing.T) {
	ok := StatusOKWithData(map[string]int{"remaining": 3})
	assert.Equal(t, StatusOK, ok.Status)
	assert.Empty(t, ok.Error)

	denied := ErrorWithData("daily_limit_reached", map[string]int{"daily_used": 10})
	assert.Equal(t, StatusError, denied.Status)
	assert.NotNil(t, denied.Data)
}
