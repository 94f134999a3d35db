package scheduler

import "github.com/mattjoyce/vgpusim/internal/config"

// Thermal is the device heat model: Newtonian cooling toward Ambient and a
// hard throttle above Limit.
type Thermal struct {
	Ambient       float32
	Limit         float32
	CoolingFactor float32
}

func NewThermal(cfg config.ThermalConfig) Thermal {
	return Thermal{Ambient: cfg.Ambient, Limit: cfg.Limit, CoolingFactor: cfg.CoolingFactor}
}

// Cool returns the temperature after one passive cooling step.
func (th Thermal) Cool(t float32) float32 {
	return t - th.CoolingFactor*(t-th.Ambient)
}

// Throttled reports whether t is above the limit.
func (th Thermal) Throttled(t float32) bool {
	return t > th.Limit
}
