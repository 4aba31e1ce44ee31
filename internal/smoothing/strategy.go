package smoothing

import (
	"fmt"

	"github.com/banshee-data/dance.motion/internal/pose"
)

// Method names a smoothing strategy.
type Method int

const (
	MethodNone Method = iota
	MethodKalman
	MethodSavGol
	MethodCombined
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodKalman:
		return "kalman"
	case MethodSavGol:
		return "savgol"
	case MethodCombined:
		return "combined"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a configuration name to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "none":
		return MethodNone, nil
	case "kalman":
		return MethodKalman, nil
	case "savgol":
		return MethodSavGol, nil
	case "combined":
		return MethodCombined, nil
	}
	return MethodNone, fmt.Errorf("unknown smoothing method %q", s)
}

// Strategy is a smoothing method together with the parameters it uses.
// Parameters for stages the method does not run are ignored.
type Strategy struct {
	Method Method
	Kalman KalmanParams
	SavGol SavGolParams
}

// DefaultStrategy is combined smoothing with default parameters.
func DefaultStrategy() Strategy {
	return Strategy{
		Method: MethodCombined,
		Kalman: DefaultKalmanParams(),
		SavGol: DefaultSavGolParams(),
	}
}

// Apply runs the strategy's method over seq.
func (e *Engine) Apply(seq pose.Sequence, s Strategy) (pose.Sequence, error) {
	switch s.Method {
	case MethodNone:
		return seq.Clone(), nil
	case MethodKalman:
		return e.ApplyKalman(seq, s.Kalman)
	case MethodSavGol:
		return e.ApplySavGol(seq, s.SavGol)
	case MethodCombined:
		return e.ApplyCombined(seq, CombinedParams{
			UseKalman: true,
			UseSavGol: true,
			Kalman:    s.Kalman,
			SavGol:    s.SavGol,
		})
	}
	return nil, fmt.Errorf("unknown smoothing method %v", s.Method)
}
