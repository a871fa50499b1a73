package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFloats_Canonical(t *testing.T) {
	got, err := marshalFloats([]float64{0, -0.01, 1.5})
	require.NoError(t, err)
	assert.Equal(t, "[0,-0.01,1.5]", got)

	got, err = marshalFloats(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
}

func TestMarshalNames_NFC(t *testing.T) {
	got, err := marshalNames([]string{"e\u0301lbow"})
	require.NoError(t, err)
	assert.Equal(t, "[\"\u00e9lbow\"]", got)
}

func TestUnmarshal_EmptyText(t *testing.T) {
	f, err := unmarshalFloats("")
	require.NoError(t, err)
	assert.Equal(t, []float64{}, f)

	n, err := unmarshalNames("")
	require.NoError(t, err)
	assert.Equal(t, []string{}, n)
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := unmarshalFloats("{")
	assert.Error(t, err)
	_, err = unmarshalNames("[1]")
	assert.Error(t, err)
}
