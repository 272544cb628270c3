package model

import (
	"testing"
	"time"
)

func TestActivityPlanCompact(t *testing.T) {
	a := ActivityPlan{Name: "A", DataCenters: []DataCenterWorks{{DataCenter: "dc1", Works: []Work{
		{StartSlot: 0, EndSlot: 1, Mode: "on", Power: 10, Performance: 2},
		{StartSlot: 1, EndSlot: 2, Mode: "on", Power: 10, Performance: 3},
		{StartSlot: 2, EndSlot: 3, Mode: "off"},
	}}}}
	c := a.Compact()
	ws := c.Works("dc1")
	if len(ws) != 2 || ws[0].Width() != 2 || ws[0].Performance != 5 || ws[1].Mode != "off" {
		t.Fatalf("unexpected compact works %+v", ws)
	}
	if len(a.Works("dc1")) != 3 {
		t.Fatalf("compact must not modify the receiver")
	}
}

func TestPlanCoverageAndProfile(t *testing.T) {
	r, _ := NewTimeRange(base, base.Add(3*time.Hour), time.Hour)
	p := EascPlan{Easc: "e", Range: r, Activities: []ActivityPlan{{Name: "A", DataCenters: []DataCenterWorks{{DataCenter: "dc1", Works: []Work{
		{StartSlot: 0, EndSlot: 2, Power: 10},
		{StartSlot: 2, EndSlot: 3, Power: 5},
	}}}}}}
	if err := p.CheckCoverage(); err != nil {
		t.Fatalf("coverage: %v", err)
	}
	prof := PowerProfile([]EascPlan{p, p})
	if got := prof["dc1"]; len(got) != 3 || got[0] != 20 || got[2] != 10 {
		t.Fatalf("unexpected profile %v", got)
	}
	p.Activities[0].DataCenters[0].Works = p.Activities[0].DataCenters[0].Works[:1]
	if err := p.CheckCoverage(); err == nil {
		t.Fatalf("expected coverage error")
	}
}

func TestStatisticsRecordIsStrictlyIncreasing(t *testing.T) {
	var s Statistics
	s.Record(10, base)
	s.Record(8, base)
	s.Record(5, base.Add(-time.Second))
	if !s.MonotonicTrace() {
		t.Fatalf("expected strictly increasing timestamps %+v", s.Scores)
	}
	if v, ok := s.Best(); !ok || v != 5 {
		t.Fatalf("unexpected best %v", v)
	}
	var st Status
	if err := st.UnmarshalText([]byte("timeout")); err != nil || st != StatusTimeout {
		t.Fatalf("unexpected status %v %v", st, err)
	}
}
