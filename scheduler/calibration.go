package scheduler

import "time"

// DeviceClass is the coarse device category used to seed latency
// calibration. The per-class constants are opinionated defaults, not
// measurements; SetLookaheadTime and SetVisualCompensation retune a live
// scheduler when observed behavior disagrees.
type DeviceClass string

const (
	DeviceClassDesktop DeviceClass = "desktop"
	DeviceClassPhone   DeviceClass = "phone"
	DeviceClassTablet  DeviceClass = "tablet"
)

// Clamp bounds for runtime tuning.
const (
	minLookahead  = 50 * time.Millisecond
	maxLookahead  = 500 * time.Millisecond
	maxVisualComp = 300 * time.Millisecond
)

// Calibration holds the scheduling parameters for one device.
type Calibration struct {
	Class              DeviceClass
	EstimatedLatency   time.Duration // device scheduling latency estimate
	Lookahead          time.Duration // how far ahead of the clock events fire
	VisualCompensation time.Duration // visual lead over audio
}

// CalibrationFor returns the default calibration for a device class.
// Tablets schedule worse than phones, phones worse than desktops.
func CalibrationFor(class DeviceClass) Calibration {
	switch class {
	case DeviceClassPhone:
		return Calibration{
			Class:              DeviceClassPhone,
			EstimatedLatency:   50 * time.Millisecond,
			Lookahead:          150 * time.Millisecond,
			VisualCompensation: 70 * time.Millisecond,
		}
	case DeviceClassTablet:
		return Calibration{
			Class:              DeviceClassTablet,
			EstimatedLatency:   65 * time.Millisecond,
			Lookahead:          180 * time.Millisecond,
			VisualCompensation: 90 * time.Millisecond,
		}
	default:
		return Calibration{
			Class:              DeviceClassDesktop,
			EstimatedLatency:   25 * time.Millisecond,
			Lookahead:          100 * time.Millisecond,
			VisualCompensation: 40 * time.Millisecond,
		}
	}
}

// normalized clamps a calibration to safe bounds.
func (c Calibration) normalized() Calibration {
	if c.Class == "" {
		c.Class = DeviceClassDesktop
	}
	c.Lookahead = clampDuration(c.Lookahead, minLookahead, maxLookahead)
	c.VisualCompensation = clampDuration(c.VisualCompensation, 0, maxVisualComp)
	if c.EstimatedLatency < 0 {
		c.EstimatedLatency = 0
	}
	return c
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
