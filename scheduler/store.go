package scheduler

import (
	"encoding/json"
	"os"
	"time"
)

// Calibration persistence. The blob is non-critical: when it is missing
// or unreadable the caller falls back to the class defaults, and
// recalibration repopulates it for free.

const calibrationVersion = "1.0-calibration"

type calibrationFile struct {
	Version            string      `json:"version"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	Class              DeviceClass `json:"class"`
	EstimatedLatencyMS int64       `json:"estimatedLatencyMs"`
	LookaheadMS        int64       `json:"lookaheadMs"`
	VisualCompMS       int64       `json:"visualCompensationMs"`
}

// LoadCalibration reads a persisted calibration. A missing file or a
// stale version silently yields the defaults for class.
func LoadCalibration(path string, class DeviceClass) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CalibrationFor(class), nil
		}
		return CalibrationFor(class), err
	}

	var cf calibrationFile
	if err := json.Unmarshal(data, &cf); err != nil || cf.Version != calibrationVersion {
		return CalibrationFor(class), nil
	}

	return Calibration{
		Class:              cf.Class,
		EstimatedLatency:   time.Duration(cf.EstimatedLatencyMS) * time.Millisecond,
		Lookahead:          time.Duration(cf.LookaheadMS) * time.Millisecond,
		VisualCompensation: time.Duration(cf.VisualCompMS) * time.Millisecond,
	}.normalized(), nil
}

// SaveCalibration persists a calibration with a tmp-file + rename so a
// crash mid-write never leaves a torn blob.
func SaveCalibration(path string, c Calibration) error {
	c = c.normalized()
	cf := calibrationFile{
		Version:            calibrationVersion,
		UpdatedAt:          time.Now(),
		Class:              c.Class,
		EstimatedLatencyMS: c.EstimatedLatency.Milliseconds(),
		LookaheadMS:        c.Lookahead.Milliseconds(),
		VisualCompMS:       c.VisualCompensation.Milliseconds(),
	}

	b, err := json.Marshal(cf)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
