package eco

import (
	"math"

	"github.com/kilianp07/consolidator/core/model"
)

// Compute splits the planned energy of plans into renewable and brown parts
// per data center and day, using the renewable power and carbon intensity of
// forecasts.
func Compute(plans []model.EascPlan, forecasts []model.SourceForecast) []Record {
	if len(plans) == 0 {
		return nil
	}
	r := plans[0].Range
	profile := model.PowerProfile(plans)
	var out []Record
	index := map[string]map[int64]int{}
	for dc, power := range profile {
		for t, p := range power {
			if p <= 0 {
				continue
			}
			at := r.SlotStart(t)
			renew, supply, weighted := 0.0, 0.0, 0.0
			for _, f := range forecasts {
				if f.DataCenter != dc || !f.Range.Contains(at) {
					continue
				}
				s := f.Slots[f.Range.SlotIndex(at)]
				renew += s.Power * s.Renewable
				supply += s.Power
				weighted += s.Power * s.Carbon
			}
			green := math.Min(p, renew)
			brown := p - green
			carbon := 0.0
			if supply > 0 {
				carbon = p * r.Hours() * weighted / supply
			}
			day := Day(at)
			if index[dc] == nil {
				index[dc] = map[int64]int{}
			}
			i, ok := index[dc][day.Unix()]
			if !ok {
				i = len(out)
				index[dc][day.Unix()] = i
				out = append(out, Record{DataCenter: dc, Date: day})
			}
			out[i].RenewableWh += green * r.Hours()
			out[i].BrownWh += brown * r.Hours()
			out[i].Carbon += carbon
		}
	}
	return out
}
