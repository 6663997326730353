package markov

import (
	"gonum.org/v1/gonum/floats"

	"sedentarism/internal/errors"
)

// Matrix3 is a dense 3x3 matrix indexed [from][to].
type Matrix3 [NumStates][NumStates]float64

// Identity returns the 3x3 identity.
func Identity() Matrix3 {
	var m Matrix3
	for i := range m {
		m[i][i] = 1
	}
	return m
}

// Mul returns m × o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < NumStates; i++ {
		for j := 0; j < NumStates; j++ {
			var s float64
			for k := 0; k < NumStates; k++ {
				s += m[i][k] * o[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// Power raises m to the n-th power by repeated squaring. Power(0) is the
// identity.
func (m Matrix3) Power(n int) (Matrix3, error) {
	if n < 0 {
		return Matrix3{}, errors.ConfigInvalidf("matrix power must be >= 0, got %d", n)
	}
	result := Identity()
	base := m
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		n >>= 1
	}
	return result, nil
}

// Row returns row i as a slice.
func (m Matrix3) Row(i State) []float64 {
	return append([]float64(nil), m[i][:]...)
}

// RowSums returns the sum of every row.
func (m Matrix3) RowSums() [NumStates]float64 {
	var out [NumStates]float64
	for i := range m {
		out[i] = floats.Sum(m[i][:])
	}
	return out
}

// ArgMax returns the most likely next state from i; the first maximum wins,
// so ties resolve to the greener state.
func (m Matrix3) ArgMax(i State) State {
	return State(floats.MaxIdx(m[i][:]))
}
