package req

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	PriceID string `json:"price_id" validate:"omitempty,max=8"`
}

func TestDecode(t *testing.T) {
	got, err := Decode[sample](io.NopCloser(strings.NewReader(`{"price_id":"price_1"}`)))
	require.NoError(t, err)
	assert.Equal(t, "price_1", got.PriceID)

	empty, err := Decode[sample](io.NopCloser(strings.NewReader("")))
	require.NoError(t, err)
	assert.Empty(t, empty.PriceID)

	_, err = Decode[sample](io.NopCloser(strings.NewReader(`{"price_id":`)))
	assert.Error(t, err)
}

func TestIsValid(t *testing.T) {
	assert.NoError(t, IsValid(sample{}))
	assert.NoError(t, IsValid(sample{PriceID: "price_1"}))
	assert.Error(t, IsValid(sample{PriceID: "price_too_long"}))
}
