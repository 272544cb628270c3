package eco

import "time"

// Record aggregates the planned energy of a data center over one day.
type Record struct {
	DataCenter  string    `json:"data_center"`
	Date        time.Time `json:"date"`
	RenewableWh float64   `json:"renewable_wh"`
	BrownWh     float64   `json:"brown_wh"`
	Carbon      float64   `json:"carbon"`
}

// EnergyWh returns the total energy of the record.
func (r Record) EnergyWh() float64 { return r.RenewableWh + r.BrownWh }

// RenewableShare returns the renewable fraction of the energy.
func (r Record) RenewableShare() float64 {
	total := r.EnergyWh()
	if total == 0 {
		return 0
	}
	return r.RenewableWh / total
}

// CO2Avoided returns the grams of CO2 avoided by the renewable energy, using
// factor grams per Wh of brown energy.
func (r Record) CO2Avoided(factor float64) float64 {
	return r.RenewableWh * factor
}
