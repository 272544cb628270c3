package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// WriteJSON writes the plans to w in JSON format.
func WriteJSON(w io.Writer, plans []model.EascPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plans)
}

// WriteCSV writes one row per work, with absolute start and end times.
func WriteCSV(w io.Writer, plans []model.EascPlan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"easc", "activity", "data_center", "start", "end", "mode", "level", "power_w", "performance"}); err != nil {
		return err
	}
	for _, p := range plans {
		for _, a := range p.Activities {
			for _, dc := range a.DataCenters {
				for _, wk := range dc.Works {
					rec := []string{
						p.Easc,
						a.Name,
						dc.DataCenter,
						p.Range.SlotStart(wk.StartSlot).Format(time.RFC3339),
						p.Range.SlotStart(wk.EndSlot).Format(time.RFC3339),
						wk.Mode,
						strconv.Itoa(wk.Level),
						strconv.FormatFloat(wk.Power, 'f', -1, 64),
						strconv.FormatFloat(wk.Performance, 'f', -1, 64),
					}
					if err := cw.Write(rec); err != nil {
						return err
					}
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
