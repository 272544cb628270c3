package merger

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// MergePlans concatenates the plans of consecutive windows. A single window is
// returned unchanged. Otherwise windows are ordered by start, the first one is
// the template every other window must match, and works are renumbered on the
// merged range keeping their width.
func MergePlans(windows [][]model.EascPlan) ([]model.EascPlan, error) {
	if len(windows) == 1 {
		return windows[0], nil
	}
	var subs [][]model.EascPlan
	for _, w := range windows {
		if len(w) > 0 {
			subs = append(subs, w)
		}
	}
	if len(subs) == 0 {
		return nil, nil
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i][0].Range.Start.Before(subs[j][0].Range.Start) })

	tmpl := subs[0]
	out := make([]model.EascPlan, len(tmpl))
	for i, p := range tmpl {
		out[i] = model.EascPlan{Easc: p.Easc, Range: p.Range}
		for _, a := range p.Activities {
			ap := model.ActivityPlan{Name: a.Name}
			for _, d := range a.DataCenters {
				ap.DataCenters = append(ap.DataCenters, model.DataCenterWorks{DataCenter: d.DataCenter})
			}
			out[i].Activities = append(out[i].Activities, ap)
		}
	}
	var prevEnd time.Time
	for si, sub := range subs {
		start := sub[0].Range.Start
		if si > 0 && !start.Equal(prevEnd) {
			return nil, &MergeError{Reason: fmt.Sprintf("window starting %s does not follow the previous one ending %s",
				start.Format(time.RFC3339), prevEnd.Format(time.RFC3339))}
		}
		prevEnd = sub[0].Range.End
		if len(sub) != len(out) {
			return nil, &MergeError{Reason: fmt.Sprintf("window %s plans %d EASCs, expected %d", sub[0].Range, len(sub), len(out))}
		}
		for _, p := range sub {
			i := indexOf(len(out), func(k int) bool { return out[k].Easc == p.Easc })
			if i < 0 {
				return nil, &MergeError{Easc: p.Easc, Reason: "not planned in the first window"}
			}
			if !p.Range.Start.Equal(start) || !p.Range.End.Equal(prevEnd) {
				return nil, &MergeError{Easc: p.Easc, Reason: fmt.Sprintf("range %s differs from window %s", p.Range, sub[0].Range)}
			}
			if err := appendWindow(&out[i], p); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// appendWindow appends the works and service levels of p to dst, matching
// activities and data centers by name.
func appendWindow(dst *model.EascPlan, p model.EascPlan) error {
	if p.Range.Slot != dst.Range.Slot {
		return &MergeError{Easc: p.Easc, Reason: fmt.Sprintf("slot %s differs from %s", p.Range.Slot, dst.Range.Slot)}
	}
	if len(p.Activities) != len(dst.Activities) {
		return &MergeError{Easc: p.Easc, Reason: fmt.Sprintf("%d activities, expected %d", len(p.Activities), len(dst.Activities))}
	}
	offset := dst.Range.SlotIndex(p.Range.Start)
	for _, a := range p.Activities {
		ai := indexOf(len(dst.Activities), func(k int) bool { return dst.Activities[k].Name == a.Name })
		if ai < 0 {
			return &MergeError{Easc: p.Easc, Activity: a.Name, Reason: "not planned in the first window"}
		}
		da := &dst.Activities[ai]
		if len(a.DataCenters) != len(da.DataCenters) {
			return &MergeError{Easc: p.Easc, Activity: a.Name, Reason: fmt.Sprintf("%d data centers, expected %d", len(a.DataCenters), len(da.DataCenters))}
		}
		for _, d := range a.DataCenters {
			di := indexOf(len(da.DataCenters), func(k int) bool { return da.DataCenters[k].DataCenter == d.DataCenter })
			if di < 0 {
				return &MergeError{Easc: p.Easc, Activity: a.Name, DataCenter: d.DataCenter, Reason: "not planned in the first window"}
			}
			dd := &da.DataCenters[di]
			for _, w := range d.Works {
				dd.Works = append(dd.Works, w.Shift(offset))
			}
		}
		da.ServiceLevels = append(da.ServiceLevels, a.ServiceLevels...)
	}
	if p.Range.End.After(dst.Range.End) {
		dst.Range.End = p.Range.End
	}
	return nil
}

func indexOf(n int, match func(int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}
