// Package quality implements component G: the multi-stage quality filter
// layer applied after segmentation and before the correction overlay.
//
// Grounded on original_source's api/services/filters.py (_path_length,
// _net_displacement, _direction_changes and the time-window filter table),
// reworked into a first-reject-wins chain of named filter functions.
package quality

import (
	"strings"
	"time"

	"github.com/aforos-core/rilsa-engine/internal/geometry"
	"github.com/aforos-core/rilsa-engine/pkg/aforo"
)

// Thresholds mirrors aforo.AnalysisSettings' quality-relevant fields with
// package-level defaults, kept separate so callers can pass either the
// dataset's AnalysisSettings or ad-hoc overrides (e.g. in tests).
type Thresholds struct {
	MinLengthMeters     float64
	MaxDirectionChanges int
	MinNetOverPathRatio float64
	PixelToMeter        float64
}

// DefaultThresholds returns the specification's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLengthMeters:     5.0,
		MaxDirectionChanges: 20,
		MinNetOverPathRatio: 0.2,
		PixelToMeter:        1.0,
	}
}

// FromSettings derives Thresholds from a dataset's AnalysisSettings.
func FromSettings(s aforo.AnalysisSettings) Thresholds {
	return Thresholds{
		MinLengthMeters:     s.MinLengthMeters,
		MaxDirectionChanges: s.MaxDirectionChanges,
		MinNetOverPathRatio: s.MinNetOverPathRatio,
		PixelToMeter:        s.PixelToMeter,
	}
}

const directionChangeAngleRadians = 1.0

// Reason names which filter rejected an event, for QC reporting.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMinLength          Reason = "min_length"
	ReasonDirectionChanges   Reason = "direction_changes"
	ReasonNetOverPathRatio   Reason = "net_over_path_ratio"
	ReasonPedestrianDuration Reason = "pedestrian_duration"
	ReasonVehicleParked      Reason = "vehicle_parked"
	ReasonVehicleIncomplete  Reason = "vehicle_incomplete"
	ReasonStraightDuration   Reason = "straight_duration"
	ReasonTurnDuration       Reason = "turn_duration"
	ReasonUTurnDuration      Reason = "uturn_duration"
)

// Evaluate runs the full filter chain against one event in the documented
// order, first-reject-wins. It returns ReasonNone when the event passes.
func Evaluate(event aforo.TrajectoryEvent, t Thresholds) Reason {
	if !aforo.IsPedestrian(event.Class) {
		if reason := evaluateVehicleGeometry(event, t); reason != ReasonNone {
			return reason
		}
	}
	return evaluateDuration(event)
}

func evaluateVehicleGeometry(event aforo.TrajectoryEvent, t Thresholds) Reason {
	pixelToMeter := t.PixelToMeter
	if pixelToMeter == 0 {
		pixelToMeter = 1.0
	}
	pathLength := geometry.PathLength(event.Positions) * pixelToMeter
	if pathLength < t.MinLengthMeters {
		return ReasonMinLength
	}

	changes := geometry.DirectionChanges(event.Positions, directionChangeAngleRadians)
	if changes > t.MaxDirectionChanges {
		return ReasonDirectionChanges
	}

	net := geometry.NetDisplacement(event.Positions) * pixelToMeter
	if pathLength > 0 && net/pathLength < t.MinNetOverPathRatio {
		return ReasonNetOverPathRatio
	}
	return ReasonNone
}

func evaluateDuration(event aforo.TrajectoryEvent) Reason {
	duration := event.TimestampExit.Sub(event.TimestampEntry)

	if aforo.IsPedestrian(event.Class) {
		if duration < 300*time.Millisecond || duration > 15*time.Second {
			return ReasonPedestrianDuration
		}
		return ReasonNone
	}

	if duration > 30*time.Second {
		return ReasonVehicleParked
	}
	if duration < 1500*time.Millisecond {
		return ReasonVehicleIncomplete
	}

	switch movementKind(event.RilsaCode) {
	case kindStraight:
		if duration < 2500*time.Millisecond || duration > 25*time.Second {
			return ReasonStraightDuration
		}
	case kindTurn:
		if duration < 1500*time.Millisecond || duration > 25*time.Second {
			return ReasonTurnDuration
		}
	case kindUTurn:
		if duration < 4*time.Second || duration > 30*time.Second {
			return ReasonUTurnDuration
		}
	}
	return ReasonNone
}

type movementCodeKind int

const (
	kindUnknown movementCodeKind = iota
	kindStraight
	kindTurn
	kindUTurn
)

// movementKind classifies a resolved RILSA code by its movement-type
// prefix: "1".."4" straight, "5".."8" and "9_*" turns, "10_*" U-turns.
func movementKind(code string) movementCodeKind {
	switch {
	case strings.HasPrefix(code, "10_"):
		return kindUTurn
	case strings.HasPrefix(code, "9_"):
		return kindTurn
	case code == "1", code == "2", code == "3", code == "4":
		return kindStraight
	case code == "5", code == "6", code == "7", code == "8":
		return kindTurn
	default:
		return kindUnknown
	}
}
