package data_test

import (
	"math"
	"testing"

	"github.com/nwiltsie/recall/data"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	a := data.Vector{1, 0, 0}
	b := data.Vector{0, 1, 0}
	assert.Equal(t, 0.0, a.Cosine(b))
	assert.InDelta(t, 1.0, a.Cosine(a), 1e-9)

	c := data.Vector{1, 1, 0}
	assert.InDelta(t, 1/math.Sqrt(2), a.Cosine(c), 1e-9)
}

func TestCosineDegenerate(t *testing.T) {
	a := data.Vector{1, 2, 3}
	assert.Equal(t, 0.0, a.Cosine(data.Vector{1, 2}), "dimension mismatch scores zero")
	assert.Equal(t, 0.0, a.Cosine(data.Vector{0, 0, 0}), "zero vector scores zero")
}

func TestVectorRoundTrip(t *testing.T) {
	a := data.Vector{0.5, -1.25, 3}
	bs, err := a.Marshal()
	assert.NoError(t, err)
	back, err := data.UnmarshalVector(bs)
	assert.NoError(t, err)
	assert.Equal(t, a, back)
}
