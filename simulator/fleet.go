package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

var fleetRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// FleetConfig holds parameters for generated EASCs.
type FleetConfig struct {
	Eascs       int
	Activities  int
	DataCenters int
}

// GenerateFleet creates Eascs EASCs named easc01..eascNN, each running
// Activities activities spread over dc1..dcN. Every activity has an "off"
// default mode and a "low" and "high" mode with two levels each.
func GenerateFleet(cfg FleetConfig) []*SimulatedEasc {
	if cfg.Eascs <= 0 || cfg.Activities <= 0 || cfg.DataCenters <= 0 {
		return nil
	}
	out := make([]*SimulatedEasc, cfg.Eascs)
	for i := range out {
		acts := make([]*Activity, cfg.Activities)
		for j := range acts {
			dc := fmt.Sprintf("dc%d", (i+j)%cfg.DataCenters+1)
			base := 50 + fleetRng.Float64()*150
			acts[j] = NewActivity(fmt.Sprintf("act%02d", j+1), model.DataCenterSpec{
				DataCenter:  dc,
				DefaultMode: "off",
				Modes: []model.WorkingMode{
					{ID: "off", Levels: []model.PerformanceLevel{{}}},
					{ID: "low", Value: 1, Levels: []model.PerformanceLevel{
						{Performance: 0.3, Power: base * 0.3},
						{Performance: 0.5, Power: base * 0.5},
					}},
					{ID: "high", Value: 2, Levels: []model.PerformanceLevel{
						{Performance: 0.8, Power: base * 0.8},
						{Performance: 1, Power: base},
					}},
				},
			})
		}
		out[i] = NewSimulatedEasc(fmt.Sprintf("easc%02d", i+1), acts)
	}
	return out
}

// FleetFromActivities builds one EASC per distinct EASC name of specs, with
// one simulated activity per data center the activity can run in.
func FleetFromActivities(specs []model.ActivitySpec) []*SimulatedEasc {
	byEasc := map[string][]*Activity{}
	for _, s := range specs {
		for _, dc := range s.DataCenters {
			byEasc[s.Easc] = append(byEasc[s.Easc], NewActivity(s.Name, dc))
		}
	}
	names := make([]string, 0, len(byEasc))
	for n := range byEasc {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*SimulatedEasc, len(names))
	for i, n := range names {
		out[i] = NewSimulatedEasc(n, byEasc[n])
	}
	return out
}

// LoadProfile reads an hourly load profile from JSON: an object mapping hour
// of day to a factor. Missing hours keep a factor of 1.
func LoadProfile(data []byte) ([24]float64, error) {
	var m map[string]float64
	var prof [24]float64
	for i := range prof {
		prof[i] = 1
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return prof, err
	}
	for h, v := range m {
		var hour int
		if _, err := fmt.Sscanf(h, "%d", &hour); err != nil {
			continue
		}
		if hour >= 0 && hour < 24 {
			prof[hour] = v
		}
	}
	return prof, nil
}
