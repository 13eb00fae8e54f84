package validators

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Validator_Check(t *testing.T) {
	v := NewValidator()
	require.False(t, v.HasErrors())

	v.Check(true, "amount", "amount is required")
	require.False(t, v.HasErrors())

	v.Check(false, "amount", "amount is required")
	require.True(t, v.HasErrors())
	assert.Equal(t, "amount is required", v.Errors["amount"])
}

func Test_Validator_CheckError(t *testing.T) {
	v := NewValidator()
	v.CheckError(nil, "field", "")
	require.False(t, v.HasErrors())

	v.CheckError(errors.New("boom"), "field", "")
	require.True(t, v.HasErrors())
	assert.Equal(t, "boom", v.Errors["field"])
}

func Test_QueryValidator_ParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		qv := NewQueryValidator()
		page, pageSize := qv.ParsePagination(httptest.NewRequest("GET", "/", nil))
		require.False(t, qv.HasErrors())
		assert.Equal(t, 1, page)
		assert.Equal(t, 20, pageSize)
	})

	t.Run("explicit values", func(t *testing.T) {
		qv := NewQueryValidator()
		page, pageSize := qv.ParsePagination(httptest.NewRequest("GET", "/?page=3&page_size=50", nil))
		require.False(t, qv.HasErrors())
		assert.Equal(t, 3, page)
		assert.Equal(t, 50, pageSize)
	})

	t.Run("non-numeric values", func(t *testing.T) {
		qv := NewQueryValidator()
		qv.ParsePagination(httptest.NewRequest("GET", "/?page=abc", nil))
		require.True(t, qv.HasErrors())
	})

	t.Run("page_size over the cap", func(t *testing.T) {
		qv := NewQueryValidator()
		qv.ParsePagination(httptest.NewRequest("GET", "/?page_size=500", nil))
		require.True(t, qv.HasErrors())
	})
}
