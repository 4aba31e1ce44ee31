package smoothing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavGolParams configures Savitzky-Golay smoothing.
type SavGolParams struct {
	WindowLength int // rounded up to the next odd number
	PolyOrder    int // must be less than the odd window length
}

// DefaultSavGolParams returns a window of 5 samples fitted with a quadratic.
func DefaultSavGolParams() SavGolParams {
	return SavGolParams{WindowLength: 5, PolyOrder: 2}
}

// window returns the odd window length, or an error if the parameters
// cannot describe a least-squares fit.
func (p SavGolParams) window() (int, error) {
	if p.WindowLength < 1 {
		return 0, fmt.Errorf("savgol window length must be at least 1, got %d", p.WindowLength)
	}
	if p.PolyOrder < 0 {
		return 0, fmt.Errorf("savgol polyorder must be non-negative, got %d", p.PolyOrder)
	}
	w := p.WindowLength
	if w%2 == 0 {
		w++
	}
	if p.PolyOrder >= w {
		return 0, fmt.Errorf("savgol polyorder %d must be less than window length %d", p.PolyOrder, w)
	}
	return w, nil
}

// savGolProjection returns the window x window matrix A(AᵀA)⁻¹Aᵀ where A is
// the Vandermonde matrix of the sample offsets -h..h. Row i gives the
// weights that evaluate the fitted polynomial at offset i-h.
func savGolProjection(window, order int) (*mat.Dense, error) {
	half := window / 2
	a := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		t := float64(i - half)
		v := 1.0
		for k := 0; k <= order; k++ {
			a.Set(i, k, v)
			v *= t
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var pinv mat.Dense
	if err := pinv.Solve(&ata, a.T()); err != nil {
		return nil, fmt.Errorf("savgol normal equations: %w", err)
	}
	var proj mat.Dense
	proj.Mul(a, &pinv)
	return &proj, nil
}

// savGolFilter smooths series with the given projection. Interior samples
// use the centre row; the first and last half-window are evaluated from
// the polynomial fitted to the first and last full window. len(series)
// must be at least the window length.
func savGolFilter(series []float64, proj *mat.Dense) []float64 {
	window, _ := proj.Dims()
	half := window / 2
	n := len(series)
	out := make([]float64, n)

	dot := func(row int, start int) float64 {
		var s float64
		for k := 0; k < window; k++ {
			s += proj.At(row, k) * series[start+k]
		}
		return s
	}

	for i := 0; i < half; i++ {
		out[i] = dot(i, 0)
	}
	for i := half; i < n-half; i++ {
		out[i] = dot(half, i-half)
	}
	for i := n - half; i < n; i++ {
		out[i] = dot(i-(n-window), n-window)
	}
	return out
}
