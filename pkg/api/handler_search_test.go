package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQueryVector(t *testing.T) {
	vec, err := decodeQueryVector("0.1,0.25,-3, 4.5")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.25, -3, 4.5}, vec)
}

func TestDecodeQueryVectorRejectsGarbage(t *testing.T) {
	_, err := decodeQueryVector("0.1,not-a-number")
	assert.Error(t, err)
}

func TestDecodeQueryVectorSingleValue(t *testing.T) {
	vec, err := decodeQueryVector("1.5")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5}, vec)
}
