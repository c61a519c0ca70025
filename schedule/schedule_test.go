package schedule

import (
	"testing"

	"github.com/uktransitdata/corpus-pipeline/model"
	"github.com/uktransitdata/corpus-pipeline/timetable"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"PT5M", 300},
		{"PT1H", 3600},
		{"PT1H30M", 5400},
		{"PT0S", 0},
		{"", 0},
		{"-PT10M", -600},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if err != nil {
			t.Errorf("ParseDuration(%q) returned error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseDurationRejectsMalformed(t *testing.T) {
	if _, err := ParseDuration("not-a-duration"); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestExpandRegularDaysExpandsComposite(t *testing.T) {
	days := expandRegularDays([]string{"MondayToFriday"})
	want := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	if len(days) != len(want) {
		t.Fatalf("got %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("days[%d] = %q, want %q", i, days[i], want[i])
		}
	}
}

func TestExpandRegularDaysDedupsAcrossTokens(t *testing.T) {
	days := expandRegularDays([]string{"MondayToFriday", "NotSaturday"})
	count := 0
	for _, d := range days {
		if d == "Monday" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected Monday to appear once across overlapping tokens, appeared %d times", count)
	}
}

func TestExpandSingleHopNoWait(t *testing.T) {
	ap := timetable.AssembledPattern{
		StopChain: []string{"A", "B"},
		RunTimes:  []string{"PT10M"},
		WaitTimes: []string{"", ""},
		Schedules: []timetable.Schedule{
			{
				Profile:    model.OperatingProfile{RegularDays: []string{"Monday"}},
				Departures: []string{"08:00:00"},
				DayShift:   []int{0},
			},
		},
	}

	got, err := Expand(ap)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	monday, ok := got["Monday"]
	if !ok || len(monday) != 1 {
		t.Fatalf("expected 1 Monday departure, got %v", got)
	}
	stops := monday[0]
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}
	if stops[0].Stop != "A" || stops[0].Time != "08:00:00" {
		t.Errorf("unexpected first stop: %+v", stops[0])
	}
	if stops[1].Stop != "B" || stops[1].Time != "08:10:00" {
		t.Errorf("unexpected second stop: %+v", stops[1])
	}
}

func TestExpandCarriesDayShiftAcrossMidnight(t *testing.T) {
	ap := timetable.AssembledPattern{
		StopChain: []string{"A", "B"},
		RunTimes:  []string{"PT2H"},
		WaitTimes: []string{"", ""},
		Schedules: []timetable.Schedule{
			{
				Profile:    model.OperatingProfile{RegularDays: []string{"Monday"}},
				Departures: []string{"23:30:00"},
				DayShift:   []int{0},
			},
		},
	}

	got, err := Expand(ap)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	stops := got["Monday"][0]
	if stops[1].Time != "01:30:00*" {
		t.Errorf("expected day-shift marker after crossing midnight, got %q", stops[1].Time)
	}
}

func TestExpandWithWaitEmitsPipedTimes(t *testing.T) {
	ap := timetable.AssembledPattern{
		StopChain: []string{"A", "B"},
		RunTimes:  []string{"PT5M"},
		WaitTimes: []string{"", "PT2M"},
		Schedules: []timetable.Schedule{
			{
				Profile:    model.OperatingProfile{RegularDays: []string{"Monday"}},
				Departures: []string{"08:00:00"},
				DayShift:   []int{0},
			},
		},
	}

	got, err := Expand(ap)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	stops := got["Monday"][0]
	if stops[1].Time != "08:02:00|08:07:00" {
		t.Errorf("unexpected piped time at wait stop: %q", stops[1].Time)
	}
}
