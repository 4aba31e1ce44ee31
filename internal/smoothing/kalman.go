package smoothing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// KalmanParams configures the per-landmark constant-velocity filter.
type KalmanParams struct {
	ProcessVariance     float64 // q, scales the white-noise acceleration model
	MeasurementVariance float64 // r, per-axis position measurement noise
}

// DefaultKalmanParams returns q = 1e-3 and r = 1e-1.
func DefaultKalmanParams() KalmanParams {
	return KalmanParams{ProcessVariance: 1e-3, MeasurementVariance: 1e-1}
}

func (p KalmanParams) validate() error {
	if p.ProcessVariance <= 0 {
		return fmt.Errorf("kalman process variance must be positive, got %g", p.ProcessVariance)
	}
	if p.MeasurementVariance <= 0 {
		return fmt.Errorf("kalman measurement variance must be positive, got %g", p.MeasurementVariance)
	}
	return nil
}

const (
	stateDim       = 6 // x, vx, y, vy, z, vz
	measurementDim = 3 // x, y, z
	initialCov     = 1000.0
)

// landmarkFilter is the filter state for one landmark name.
type landmarkFilter struct {
	x *mat.VecDense // state [x, vx, y, vy, z, vz]
	p *mat.Dense    // 6x6 covariance
}

func newLandmarkFilter(x, y, z float64) *landmarkFilter {
	p := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		p.Set(i, i, initialCov)
	}
	return &landmarkFilter{
		x: mat.NewVecDense(stateDim, []float64{x, 0, y, 0, z, 0}),
		p: p,
	}
}

func (f *landmarkFilter) position() (x, y, z float64) {
	return f.x.AtVec(0), f.x.AtVec(2), f.x.AtVec(4)
}

// kalmanModel holds the fixed matrices for one parameter set. The time step
// is one frame.
type kalmanModel struct {
	f *mat.Dense // state transition
	q *mat.Dense // process noise
	h *mat.Dense // observation model
	r *mat.Dense // measurement noise
}

func newKalmanModel(params KalmanParams) kalmanModel {
	const dt = 1.0

	// F = blockdiag([[1 dt] [0 1]]) per axis.
	f := mat.NewDense(stateDim, stateDim, nil)
	// Q = q * blockdiag([[dt^4/4 dt^3/2] [dt^3/2 dt^2]]) per axis.
	q := mat.NewDense(stateDim, stateDim, nil)
	// H picks x, y, z out of the state.
	h := mat.NewDense(measurementDim, stateDim, nil)
	for axis := 0; axis < 3; axis++ {
		pos, vel := 2*axis, 2*axis+1
		f.Set(pos, pos, 1)
		f.Set(pos, vel, dt)
		f.Set(vel, vel, 1)

		q.Set(pos, pos, params.ProcessVariance*dt*dt*dt*dt/4)
		q.Set(pos, vel, params.ProcessVariance*dt*dt*dt/2)
		q.Set(vel, pos, params.ProcessVariance*dt*dt*dt/2)
		q.Set(vel, vel, params.ProcessVariance*dt*dt)

		h.Set(axis, pos, 1)
	}

	r := mat.NewDense(measurementDim, measurementDim, nil)
	for i := 0; i < measurementDim; i++ {
		r.Set(i, i, params.MeasurementVariance)
	}
	return kalmanModel{f: f, q: q, h: h, r: r}
}

// predict advances the state one frame: x = Fx, P = FPFᵀ + Q.
func (m kalmanModel) predict(st *landmarkFilter) {
	var x mat.VecDense
	x.MulVec(m.f, st.x)
	st.x = &x

	var fp, p mat.Dense
	fp.Mul(m.f, st.p)
	p.Mul(&fp, m.f.T())
	p.Add(&p, m.q)
	st.p = &p
}

// update folds in a position measurement using the Joseph form
// P = (I-KH)P(I-KH)ᵀ + KRKᵀ, which keeps P symmetric positive semi-definite.
func (m kalmanModel) update(st *landmarkFilter, zx, zy, zz float64) error {
	z := mat.NewVecDense(measurementDim, []float64{zx, zy, zz})

	// Innovation y = z - Hx.
	var hx, y mat.VecDense
	hx.MulVec(m.h, st.x)
	y.SubVec(z, &hx)

	// S = HPHᵀ + R.
	var hp, s mat.Dense
	hp.Mul(m.h, st.p)
	s.Mul(&hp, m.h.T())
	s.Add(&s, m.r)

	// K = PHᵀS⁻¹. S and P are symmetric so Kᵀ = S⁻¹HP.
	var kt mat.Dense
	if err := kt.Solve(&s, &hp); err != nil {
		return fmt.Errorf("innovation covariance: %w", err)
	}
	k := kt.T()

	var ky, x mat.VecDense
	ky.MulVec(k, &y)
	x.AddVec(st.x, &ky)
	st.x = &x

	var ikh mat.Dense
	ikh.Mul(k, m.h)
	ikh.Scale(-1, &ikh)
	for i := 0; i < stateDim; i++ {
		ikh.Set(i, i, ikh.At(i, i)+1)
	}

	var left, joseph, kr, krk mat.Dense
	left.Mul(&ikh, st.p)
	joseph.Mul(&left, ikh.T())
	kr.Mul(k, m.r)
	krk.Mul(&kr, &kt)
	joseph.Add(&joseph, &krk)
	st.p = &joseph
	return nil
}
