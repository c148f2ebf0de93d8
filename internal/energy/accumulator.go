// Package energy integrates instantaneous power samples into per-unit kWh.
package energy

import (
	"sync"
	"time"

	"github.com/joshp123/godaikin/plugins/daikin"
)

type unitEnergy struct {
	kWh      float64
	baseline time.Time
}

// Accumulator tracks cumulative energy per unit for the life of the process.
type Accumulator struct {
	now func() time.Time

	mu    sync.Mutex
	units map[string]*unitEnergy
}

func NewAccumulator() *Accumulator {
	return NewAccumulatorWithClock(time.Now)
}

// NewAccumulatorWithClock uses now as the time source.
func NewAccumulatorWithClock(now func() time.Time) *Accumulator {
	return &Accumulator{
		now:   now,
		units: make(map[string]*unitEnergy),
	}
}

// Accumulate credits energy drawn since the previous call and returns the total.
// The first observation of a unit only sets the baseline and returns 0.
func (a *Accumulator) Accumulate(unit daikin.Aircond) float64 {
	now := a.now()
	id := unit.UniqueID()

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.units[id]
	if !ok {
		a.units[id] = &unitEnergy{baseline: now}
		return 0
	}

	if unit.DrawingPower() {
		hours := now.Sub(entry.baseline).Hours()
		if hours > 0 {
			entry.kWh += float64(unit.ShadowState.StaODPwrCon) / 1000 * hours
		}
	}
	entry.baseline = now
	return entry.kWh
}

// ResetIfOff zeroes the total when the unit's power flag is cleared.
func (a *Accumulator) ResetIfOff(unit daikin.Aircond) {
	if unit.IsOn() || unit.ShadowState.SetOnOff != 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.units[unit.UniqueID()]; ok {
		entry.kWh = 0
	}
}

// Get returns the cumulative total for a unit, 0 when it has not been seen.
func (a *Accumulator) Get(uniqueID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.units[uniqueID]; ok {
		return entry.kWh
	}
	return 0
}
