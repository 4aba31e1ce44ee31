package smoothing

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dance.motion/internal/monitoring"
	"github.com/banshee-data/dance.motion/internal/pose"
)

var logf = monitoring.Prefixed("[smoothing] ")

type projectionKey struct {
	window, order int
}

// Engine owns the Kalman filter state for one run, keyed by landmark name.
// Filters are created on a landmark's first measurement and persist across
// ApplyKalman calls until Reset.
type Engine struct {
	mu          sync.Mutex
	filters     map[string]*landmarkFilter
	projections map[projectionKey]*mat.Dense
}

// NewEngine returns an engine with no filter state.
func NewEngine() *Engine {
	return &Engine{
		filters:     make(map[string]*landmarkFilter),
		projections: make(map[projectionKey]*mat.Dense),
	}
}

// Reset discards every landmark filter.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = make(map[string]*landmarkFilter)
}

// TrackedLandmarks returns the number of landmark names with filter state.
func (e *Engine) TrackedLandmarks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.filters)
}

// ApplyKalman filters every present landmark position through its own
// constant-velocity Kalman filter, predicting then updating once per frame.
// Landmarks absent from a frame are skipped entirely for that frame: their
// filters neither predict nor update. Visibility is carried through.
func (e *Engine) ApplyKalman(seq pose.Sequence, params KalmanParams) (pose.Sequence, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	model := newKalmanModel(params)
	out := seq.Clone()
	for fi := range out {
		frame := &out[fi]
		for li := range frame.Landmarks {
			lm := &frame.Landmarks[li]
			st, ok := e.filters[lm.Name]
			if !ok {
				st = newLandmarkFilter(lm.X, lm.Y, lm.Z)
				e.filters[lm.Name] = st
			}
			model.predict(st)
			if err := model.update(st, lm.X, lm.Y, lm.Z); err != nil {
				// Keep the prediction and move on; a singular S only
				// arises from degenerate variances.
				logf("frame %d %s: %v", frame.FrameIndex, lm.Name, err)
			}
			lm.X, lm.Y, lm.Z = st.position()
		}
	}
	return out, nil
}

func (e *Engine) projection(window, order int) (*mat.Dense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := projectionKey{window, order}
	if p, ok := e.projections[key]; ok {
		return p, nil
	}
	p, err := savGolProjection(window, order)
	if err != nil {
		return nil, err
	}
	e.projections[key] = p
	return p, nil
}

type occurrence struct {
	frame, landmark int
}

// ApplySavGol smooths each landmark's x, y and z series with a
// Savitzky-Golay filter. The series for a landmark is its sequence of
// occurrences in frame order. Landmarks seen in fewer frames than the window
// pass through unchanged, and a sequence shorter than the window is returned
// unchanged. Invalid parameters are an error.
func (e *Engine) ApplySavGol(seq pose.Sequence, params SavGolParams) (pose.Sequence, error) {
	window, err := params.window()
	if err != nil {
		return nil, err
	}
	out := seq.Clone()
	if len(seq) < window {
		logf("sequence of %d frames shorter than window %d, savgol skipped", len(seq), window)
		return out, nil
	}
	proj, err := e.projection(window, params.PolyOrder)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, pose.LandmarkCount)
	byName := make(map[string][]occurrence)
	for fi := range out {
		for li, lm := range out[fi].Landmarks {
			if _, ok := byName[lm.Name]; !ok {
				order = append(order, lm.Name)
			}
			byName[lm.Name] = append(byName[lm.Name], occurrence{fi, li})
		}
	}

	for _, name := range order {
		occ := byName[name]
		if len(occ) < window {
			continue
		}
		xs := make([]float64, len(occ))
		ys := make([]float64, len(occ))
		zs := make([]float64, len(occ))
		for i, o := range occ {
			lm := out[o.frame].Landmarks[o.landmark]
			xs[i], ys[i], zs[i] = lm.X, lm.Y, lm.Z
		}
		xs, ys, zs = savGolFilter(xs, proj), savGolFilter(ys, proj), savGolFilter(zs, proj)
		for i, o := range occ {
			lm := &out[o.frame].Landmarks[o.landmark]
			lm.X, lm.Y, lm.Z = xs[i], ys[i], zs[i]
		}
	}
	return out, nil
}

// CombinedParams selects and configures the stages of ApplyCombined.
type CombinedParams struct {
	UseKalman bool
	UseSavGol bool
	Kalman    KalmanParams
	SavGol    SavGolParams
}

// DefaultCombinedParams enables both stages with their default parameters.
func DefaultCombinedParams() CombinedParams {
	return CombinedParams{
		UseKalman: true,
		UseSavGol: true,
		Kalman:    DefaultKalmanParams(),
		SavGol:    DefaultSavGolParams(),
	}
}

// ApplyCombined runs Kalman filtering then Savitzky-Golay smoothing, each
// only if enabled. With both disabled it returns a copy of seq.
func (e *Engine) ApplyCombined(seq pose.Sequence, params CombinedParams) (pose.Sequence, error) {
	out := seq.Clone()
	var err error
	if params.UseKalman {
		if out, err = e.ApplyKalman(out, params.Kalman); err != nil {
			return nil, err
		}
	}
	if params.UseSavGol {
		if out, err = e.ApplySavGol(out, params.SavGol); err != nil {
			return nil, err
		}
	}
	return out, nil
}
