package sweep

import "github.com/avirtanen/eccsweep/internal/config"

// GeometryCase is one combination of rotor placement errors. The zero value
// is the nominal (error-free) geometry.
type GeometryCase struct {
	StaticEccMM  float64
	DynamicEccMM float64
	TiltDeg      float64
}

func (c GeometryCase) Nominal() bool {
	return c.StaticEccMM == 0 && c.DynamicEccMM == 0 && c.TiltDeg == 0
}

// SystemCase is one combination of drive-level sweep parameters.
type SystemCase struct {
	Controller   string
	SwitchingKHz float64
	SpeedRPM     float64
}

// GeometryCases expands the configured error ranges into the full list of
// geometry cases, ordered static > dynamic > tilt, last varying fastest.
func GeometryCases(g config.GeometryErrors) []GeometryCase {
	space := NewSpace(g.StaticEccMM, g.DynamicEccMM, g.TiltDeg)
	cases := make([]GeometryCase, 0, space.Size())
	for {
		tuple, ok := space.Next()
		if !ok {
			return cases
		}
		cases = append(cases, GeometryCase{
			StaticEccMM:  tuple[0],
			DynamicEccMM: tuple[1],
			TiltDeg:      tuple[2],
		})
	}
}

// SystemCases expands the configured drive parameters into the full list of
// system cases, ordered controller > frequency > speed, last varying fastest.
func SystemCases(s config.SystemParams) []SystemCase {
	cases := make([]SystemCase, 0, len(s.Controllers)*len(s.HILFreqKHz)*len(s.SpeedRPM))
	for _, ctrl := range s.Controllers {
		space := NewSpace(s.HILFreqKHz, s.SpeedRPM)
		for {
			tuple, ok := space.Next()
			if !ok {
				break
			}
			cases = append(cases, SystemCase{
				Controller:   ctrl,
				SwitchingKHz: tuple[0],
				SpeedRPM:     tuple[1],
			})
		}
	}
	return cases
}
