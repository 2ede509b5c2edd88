// Package caseid encodes simulation cases as deterministic string keys and
// decodes them back. Keys double as result-store file names and as the
// cross-stage lookup handle, so the encoding is stable across runs and
// injective over every case a config can produce.
//
// Key grammar ('_' separates fields; motor IDs and controller names never
// contain '_'):
//
//	<motor>_static_<v>_dyn_<v>_tilt_<v>          electromagnetic sweep case
//	<motor>_<controller>_<f>kHz_<rpm>rpm         system simulation case
//	<motor>_<controller>_<f>kHz_<rpm>rpm_res     system simulation result
//
// Numeric fields substitute 'p' for '.' and 'm' for a leading '-' so keys
// stay filesystem-safe. Geometry values always carry a decimal ("0p0"), the
// nominal case being <motor>_static_0p0_dyn_0p0_tilt_0p0.
package caseid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/avirtanen/eccsweep/internal/sweep"
)

var ErrBadKey = errors.New("caseid: malformed key")

// encodeGeom renders a geometry value with at least one decimal place, then
// applies the filesystem substitution.
func encodeGeom(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return substitute(s)
}

// encodeRate renders a drive value: integral values without a decimal,
// fractional values through the same substitution.
func encodeRate(v float64) string {
	return substitute(strconv.FormatFloat(v, 'f', -1, 64))
}

func substitute(s string) string {
	s = strings.ReplaceAll(s, ".", "p")
	return strings.ReplaceAll(s, "-", "m")
}

func decodeNum(s string) (float64, error) {
	s = strings.ReplaceAll(s, "p", ".")
	s = strings.ReplaceAll(s, "m", "-")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad numeric field %q", ErrBadKey, s)
	}
	return v, nil
}

// Geometry returns the stage-1 key for a motor and geometry case.
func Geometry(motorID string, c sweep.GeometryCase) string {
	return fmt.Sprintf("%s_static_%s_dyn_%s_tilt_%s",
		motorID, encodeGeom(c.StaticEccMM), encodeGeom(c.DynamicEccMM), encodeGeom(c.TiltDeg))
}

// Nominal returns the stage-1 key of the error-free geometry for a motor.
// System simulations resolve their torque-map dependency through this key.
func Nominal(motorID string) string {
	return Geometry(motorID, sweep.GeometryCase{})
}

// System returns the stage-2 case name for a motor and system case.
func System(motorID string, c sweep.SystemCase) string {
	return fmt.Sprintf("%s_%s_%skHz_%srpm",
		motorID, c.Controller, encodeRate(c.SwitchingKHz), encodeRate(c.SpeedRPM))
}

// SystemResult returns the store key under which the stage-2 solver output
// for a case is kept.
func SystemResult(motorID string, c sweep.SystemCase) string {
	return System(motorID, c) + "_res"
}

// ParseGeometry recovers the motor ID and geometry case from a stage-1 key.
func ParseGeometry(key string) (string, sweep.GeometryCase, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 7 || parts[1] != "static" || parts[3] != "dyn" || parts[5] != "tilt" {
		return "", sweep.GeometryCase{}, fmt.Errorf("%w: %q is not a geometry key", ErrBadKey, key)
	}
	var c sweep.GeometryCase
	var err error
	if c.StaticEccMM, err = decodeNum(parts[2]); err != nil {
		return "", sweep.GeometryCase{}, err
	}
	if c.DynamicEccMM, err = decodeNum(parts[4]); err != nil {
		return "", sweep.GeometryCase{}, err
	}
	if c.TiltDeg, err = decodeNum(parts[6]); err != nil {
		return "", sweep.GeometryCase{}, err
	}
	return parts[0], c, nil
}

// ParseSystem recovers the motor ID and system case from a stage-2 key, with
// or without the trailing result marker.
func ParseSystem(key string) (string, sweep.SystemCase, error) {
	key = strings.TrimSuffix(key, "_res")
	parts := strings.Split(key, "_")
	if len(parts) != 4 || !strings.HasSuffix(parts[2], "kHz") || !strings.HasSuffix(parts[3], "rpm") {
		return "", sweep.SystemCase{}, fmt.Errorf("%w: %q is not a system key", ErrBadKey, key)
	}
	c := sweep.SystemCase{Controller: parts[1]}
	var err error
	if c.SwitchingKHz, err = decodeNum(strings.TrimSuffix(parts[2], "kHz")); err != nil {
		return "", sweep.SystemCase{}, err
	}
	if c.SpeedRPM, err = decodeNum(strings.TrimSuffix(parts[3], "rpm")); err != nil {
		return "", sweep.SystemCase{}, err
	}
	return parts[0], c, nil
}

// IsGeometry reports whether key names a stage-1 case.
func IsGeometry(key string) bool {
	_, _, err := ParseGeometry(key)
	return err == nil
}

// GeometryLabel renders a stage-1 key as a short human-readable case label
// for plot axes and summaries, e.g. "static 0.1 dyn 0 tilt 0.5".
func GeometryLabel(key string) string {
	_, c, err := ParseGeometry(key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("static %g dyn %g tilt %g", c.StaticEccMM, c.DynamicEccMM, c.TiltDeg)
}
