package data

import (
	"encoding/json"
	"math"
)

// Vector is a dense embedding as produced by the embedding collaborator.
type Vector []float32

func (this Vector) Dot(other Vector) float64 {
	var sum float64
	n := len(this)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		sum += float64(this[i]) * float64(other[i])
	}
	return sum
}

func (this Vector) Norm() float64 {
	var sum float64
	for _, v := range this {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity in [-1, 1]. Mismatched dimensions or
// a zero vector score 0 rather than erroring; the index meta check upstream
// is what prevents mixed-model comparisons.
func (this Vector) Cosine(other Vector) float64 {
	if len(this) != len(other) {
		return 0
	}
	na, nb := this.Norm(), other.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return this.Dot(other) / (na * nb)
}

func (this Vector) Marshal() ([]byte, error) {
	return json.Marshal([]float32(this))
}

func UnmarshalVector(bs []byte) (Vector, error) {
	var v []float32
	if err := json.Unmarshal(bs, &v); err != nil {
		return nil, err
	}
	return Vector(v), nil
}
