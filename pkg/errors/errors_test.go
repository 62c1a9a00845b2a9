package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(CodeStateConflict)
	assert.Equal(t, http.StatusUnprocessableEntity, meta.HTTPStatus)
	assert.True(t, meta.DetailsAllowed)

	unknown := MetadataFor(Code("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusInternalServerError, unknown.HTTPStatus)
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeDependency, cause, "payment provider unreachable")

	require.NotNil(t, err)
	assert.Equal(t, CodeDependency, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: payment provider unreachable", err.Error())
}

func TestAsUnwrapsNestedError(t *testing.T) {
	t.Parallel()

	inner := New(CodeNotFound, "order not found")
	outer := fmt.Errorf("loading order: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodeNotFound, typed.Code())
	assert.Equal(t, "order not found", typed.Message())
}

func TestIsCode(t *testing.T) {
	t.Parallel()

	err := New(CodeConflict, "insufficient stock")
	assert.True(t, IsCode(err, CodeConflict))
	assert.False(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(nil, CodeConflict))
}

func TestWithDetails(t *testing.T) {
	t.Parallel()

	err := New(CodeValidation, "bad request").WithDetails(map[string]string{"quantity": "must be at least 1"})
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at least 1", details["quantity"])
}
