// Package schedule implements the Schedule Expander: turning each
// assembled JourneyPattern's anchor departures, per-link run times and
// per-stop wait times into absolute per-stop clock times carrying a
// day-shift marker, then bucketing the results into seven per-weekday
// timetables.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/timetable"
)

var durationPattern = regexp.MustCompile(`^(-?)PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseDuration parses a TransXChange ISO-8601 duration of the
// restricted -?PT#H#M#S form into a whole number of seconds. An empty
// string is treated as PT0S, matching the wait-time default used
// throughout this pipeline.
func ParseDuration(s string) (int, error) {
	if s == "" {
		s = "PT0S"
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.New(errors.DurationMalformed, fmt.Sprintf("cannot parse duration %q", s))
	}

	hours := atoiOrZero(m[2])
	minutes := atoiOrZero(m[3])
	seconds := atoiOrZero(m[4])
	total := hours*3600 + minutes*60 + seconds
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// StopTime is one stop-and-clock-time pair within an expanded departure.
type StopTime struct {
	Stop string
	Time string
}

// weekdayNames in TransXChange's declaration order.
var weekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// weekdayMembership maps each regular-day token to the set of weekdays
// it implies, per the composite-token expansion table.
var weekdayMembership = map[string][]string{
	"Monday":           {"Monday"},
	"Tuesday":          {"Tuesday"},
	"Wednesday":        {"Wednesday"},
	"Thursday":         {"Thursday"},
	"Friday":           {"Friday"},
	"Saturday":         {"Saturday"},
	"Sunday":           {"Sunday"},
	"MondayToFriday":   {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
	"MondayToSaturday": {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	"MondayToSunday":   weekdayNames,
	"Weekend":          {"Saturday", "Sunday"},
	"NotSaturday":      {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Sunday"},
}

// Timetables maps a weekday name to the list of expanded departures
// running that day, each departure itself a per-stop list of StopTime.
type Timetables map[string][][]StopTime

// Expand turns every Schedule of an assembled JourneyPattern into
// per-stop clock times, bucketed by weekday.
func Expand(ap timetable.AssembledPattern) (Timetables, error) {
	out := make(Timetables)

	for _, sched := range ap.Schedules {
		days := expandRegularDays(sched.Profile.RegularDays)
		if len(days) == 0 {
			continue
		}

		for i, departure := range sched.Departures {
			dayShift := i < len(sched.DayShift) && sched.DayShift[i] == 1
			stops, err := expandDeparture(ap, departure, dayShift)
			if err != nil {
				return nil, err
			}
			for _, day := range days {
				out[day] = append(out[day], stops)
			}
		}
	}

	return out, nil
}

// expandRegularDays unions every regular-day token's implied weekdays,
// deduplicated and in weekdayNames order.
func expandRegularDays(tokens []string) []string {
	set := make(map[string]bool)
	for _, token := range tokens {
		for _, day := range weekdayMembership[token] {
			set[day] = true
		}
	}
	days := make([]string, 0, len(set))
	for _, day := range weekdayNames {
		if set[day] {
			days = append(days, day)
		}
	}
	return days
}

// expandDeparture walks one anchor departure across every stop of ap,
// carrying a sticky day-shift flag once any hop crosses midnight.
func expandDeparture(ap timetable.AssembledPattern, departure string, dayShift bool) ([]StopTime, error) {
	cursorSeconds, err := parseClock(departure)
	if err != nil {
		return nil, err
	}

	previousDay := dayShift
	initialMarker := marker(dayShift)

	stops := make([]StopTime, 0, len(ap.WaitTimes))
	for j, waitTime := range ap.WaitTimes {
		originalSeconds := cursorSeconds

		waitSeconds, err := ParseDuration(waitTime)
		if err != nil {
			return nil, err
		}
		withWaitTotal := originalSeconds + waitSeconds
		dayShiftWait := withWaitTotal/3600 > 23 || previousDay
		previousDay = dayShiftWait

		runTime := "PT0S"
		if j > 0 {
			runTime = ap.RunTimes[j-1]
		}
		runSeconds, err := ParseDuration(runTime)
		if err != nil {
			return nil, err
		}
		withRunTotal := withWaitTotal + runSeconds
		dayShiftRun := withRunTotal/3600 > 23 || previousDay
		previousDay = dayShiftRun

		timeO := formatClock(originalSeconds) + initialMarker
		timeW := formatClock(wrap(withWaitTotal)) + marker(dayShiftWait)
		timeR := formatClock(wrap(withRunTotal)) + marker(dayShiftRun)

		stop := ""
		if j < len(ap.StopChain) {
			stop = ap.StopChain[j]
		}

		var timeStr string
		if j == 0 {
			timeStr = timeO
			if waitTime != "" {
				timeStr = timeO + "|" + timeW
			}
		} else {
			timeStr = timeR
			if waitTime != "" {
				timeStr = timeW + "|" + timeR
			}
		}
		stops = append(stops, StopTime{Stop: stop, Time: timeStr})

		cursorSeconds = wrap(withRunTotal)
	}

	return stops, nil
}

func marker(shifted bool) string {
	if shifted {
		return "*"
	}
	return ""
}

func wrap(seconds int) int {
	const day = 86400
	s := seconds % day
	if s < 0 {
		s += day
	}
	return s
}

func parseClock(s string) (int, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%2d:%2d:%2d", &h, &m, &sec); err != nil {
		return 0, errors.New(errors.DurationMalformed, fmt.Sprintf("cannot parse clock time %q", s))
	}
	return h*3600 + m*60 + sec, nil
}

func formatClock(totalSeconds int) string {
	totalSeconds = wrap(totalSeconds)
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
