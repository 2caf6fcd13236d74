// Package threshold classifies tank readings into status bands.
package threshold

import (
	"github.com/shawn/tankwatch/internal/apperr"
	"github.com/shawn/tankwatch/internal/tank"
)

// Status is the classification of a single tank.
type Status string

const (
	StatusAlert       Status = "alerta"
	StatusCritical    Status = "critico"
	StatusAttention   Status = "atencao"
	StatusOperational Status = "operacional"
)

const (
	DefaultCriticalPercent  = 20
	DefaultAttentionPercent = 50
)

// Config holds the fill-percentage cutoffs for one owner.
type Config struct {
	CriticalPercent  float64 `json:"threshold_critico"`
	AttentionPercent float64 `json:"threshold_atencao"`
}

// Defaults returns the system default cutoffs.
func Defaults() Config {
	return Config{CriticalPercent: DefaultCriticalPercent, AttentionPercent: DefaultAttentionPercent}
}

// Validate enforces 0 <= critical < attention <= 100.
func (c Config) Validate() error {
	if c.CriticalPercent < 0 || c.CriticalPercent > 100 {
		return apperr.Invalid("threshold_critico", "must be between 0 and 100, got %g", c.CriticalPercent)
	}
	if c.AttentionPercent < 0 || c.AttentionPercent > 100 {
		return apperr.Invalid("threshold_atencao", "must be between 0 and 100, got %g", c.AttentionPercent)
	}
	if c.CriticalPercent >= c.AttentionPercent {
		return apperr.Invalid("threshold_critico", "must be lower than threshold_atencao (%g >= %g)",
			c.CriticalPercent, c.AttentionPercent)
	}
	return nil
}

// Classify maps a reading to its status. Water contamination wins over any
// fill level. The reading must have a positive capacity.
func Classify(r tank.Reading, cfg Config) Status {
	if r.HasWater() {
		return StatusAlert
	}
	fill := r.FillPercent()
	switch {
	case fill < cfg.CriticalPercent:
		return StatusCritical
	case fill < cfg.AttentionPercent:
		return StatusAttention
	default:
		return StatusOperational
	}
}

// Counts is the per-status tally shown on the dashboard.
type Counts struct {
	Alert       int `json:"alerta"`
	Critical    int `json:"critico"`
	Attention   int `json:"atencao"`
	Operational int `json:"operacional"`
}

// TankStatus is the classification of one reading.
type TankStatus struct {
	TankID      string  `json:"tankId"`
	StationName string  `json:"stationName,omitempty"`
	FillPercent float64 `json:"fillPercent"`
	Status      Status  `json:"status"`
}

// Summarize validates and classifies every reading. The first invalid
// reading aborts the pass.
func Summarize(readings []tank.Reading, cfg Config) (Counts, []TankStatus, error) {
	var counts Counts
	statuses := make([]TankStatus, 0, len(readings))
	for _, r := range readings {
		if err := r.Validate(); err != nil {
			return Counts{}, nil, err
		}
		s := Classify(r, cfg)
		switch s {
		case StatusAlert:
			counts.Alert++
		case StatusCritical:
			counts.Critical++
		case StatusAttention:
			counts.Attention++
		default:
			counts.Operational++
		}
		statuses = append(statuses, TankStatus{
			TankID:      r.TankID,
			StationName: r.StationName,
			FillPercent: r.FillPercent(),
			Status:      s,
		})
	}
	return counts, statuses, nil
}
