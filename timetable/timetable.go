// Package timetable implements the Timetable Assembler: joining a
// Service's JourneyPatterns, their JourneyPatternSections, and every
// VehicleJourney that runs them (chasing VehicleJourneyRef indirection)
// into a list of per-JourneyPattern schedules — one entry per distinct
// operating profile, each carrying the set of anchor departure times
// that share it.
package timetable

import (
	"encoding/json"
	"sort"

	"github.com/uktransitdata/corpus-pipeline/model"
)

// Schedule is one group of departures sharing a single operating profile.
type Schedule struct {
	Profile    model.OperatingProfile
	Departures []string
	DayShift   []int
}

// AssembledPattern is one JourneyPattern fully joined with its timing
// links and the VehicleJourneys that run it.
type AssembledPattern struct {
	JourneyPatternID string
	RouteRef         string
	Direction        string

	JPTLIDs    []string
	StopChain  []string
	RunTimes   []string
	WaitTimes  []string
	Activities []string

	Schedules []Schedule
	Vehicle   string
}

// Assemble builds one AssembledPattern per JourneyPattern of svc, plus the
// vehicle-type metadata ({vehicleCode: description}) accumulated across
// every VehicleJourney in svc, keyed by Operational.VehicleType.VehicleTypeCode.
func Assemble(doc *model.Document, svc *model.Service) ([]AssembledPattern, map[string]string) {
	vehicles := make(map[string]string)
	patterns := make([]AssembledPattern, 0, len(svc.JourneyPatterns))
	for i := range svc.JourneyPatterns {
		jp := &svc.JourneyPatterns[i]
		patterns = append(patterns, assembleOne(doc, svc, jp, vehicles))
	}
	return patterns, vehicles
}

func assembleOne(doc *model.Document, svc *model.Service, jp *model.JourneyPattern, vehicles map[string]string) AssembledPattern {
	ap := AssembledPattern{
		JourneyPatternID: jp.ID,
		RouteRef:         jp.RouteRef,
		Direction:        jp.Direction,
	}
	projectTimingLinks(doc, jp, &ap)
	joinVehicleJourneys(doc, svc, jp, &ap, vehicles)
	return ap
}

// projectTimingLinks walks jp's section refs in order, flattening their
// timing links into the parallel arrays every later step indexes into.
// The first stop takes the first link's From.* attributes; every
// subsequent stop takes the link's To.* attributes. An unset Activity
// defaults to "pickUp" at the first stop, "setDown" at the last, and
// "pickUpAndSetDown" everywhere between.
func projectTimingLinks(doc *model.Document, jp *model.JourneyPattern, ap *AssembledPattern) {
	var links []model.JourneyPatternTimingLink
	for _, ref := range jp.JourneyPatternSectionRefs {
		section, ok := doc.JourneyPatternSectionByID(ref)
		if !ok {
			continue
		}
		links = append(links, section.JourneyPatternTimingLinks...)
	}
	if len(links) == 0 {
		return
	}

	for i, link := range links {
		ap.JPTLIDs = append(ap.JPTLIDs, link.ID)
		ap.RunTimes = append(ap.RunTimes, link.RunTime)

		if i == 0 {
			ap.StopChain = append(ap.StopChain, link.FromStopRef)
			ap.Activities = append(ap.Activities, defaultActivity(link.FromActivity, "pickUp"))
			ap.WaitTimes = append(ap.WaitTimes, "")
		}

		ap.StopChain = append(ap.StopChain, link.ToStopRef)
		ap.WaitTimes = append(ap.WaitTimes, link.WaitTime)
		defaultAct := "pickUpAndSetDown"
		if i == len(links)-1 {
			defaultAct = "setDown"
		}
		ap.Activities = append(ap.Activities, defaultActivity(link.ToActivity, defaultAct))
	}
}

func defaultActivity(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	return fallback
}

// joinVehicleJourneys attributes every VehicleJourney that runs jp to a
// departure-grouped Schedule, chasing VehicleJourneyRef indirection,
// applying per-JPTL VehicleJourneyTimingLink overrides, and rolling up
// vehicle-type metadata: the last-seen vehicle code is attached to ap,
// and its description is recorded in vehicles the first time that code
// is seen across the whole service.
func joinVehicleJourneys(doc *model.Document, svc *model.Service, jp *model.JourneyPattern, ap *AssembledPattern, vehicles map[string]string) {
	for i := range doc.VehicleJourneys {
		vj := &doc.VehicleJourneys[i]

		targetJPID, departureTime, dayShift := resolveDeparture(doc, vj)
		if targetJPID != jp.ID || departureTime == "" {
			continue
		}

		profile := unionProfiles(svc.OperatingProfile, vj.OperatingProfile)
		addDeparture(ap, profile, departureTime, dayShift)
		applyTimingOverrides(ap, vj)

		if vj.Vehicle.Code != "" {
			ap.Vehicle = vj.Vehicle.Code
			if _, seen := vehicles[vj.Vehicle.Code]; !seen {
				vehicles[vj.Vehicle.Code] = vj.Vehicle.Description
			}
		}
	}
}

// resolveDeparture determines which JourneyPattern a VehicleJourney
// contributes a departure to, and at what time. A VehicleJourneyRef
// indirection borrows the referenced VJ's pattern and departure time;
// the referencing VJ still supplies its own operating profile.
func resolveDeparture(doc *model.Document, vj *model.VehicleJourney) (jpID, departureTime string, dayShift int) {
	if vj.VehicleJourneyRef != "" {
		ref, ok := doc.VehicleJourneyByCode(vj.VehicleJourneyRef)
		if !ok {
			return "", "", 0
		}
		return ref.JourneyPatternRef, ref.DepartureTime, ref.DepartureDayShift
	}
	return vj.JourneyPatternRef, vj.DepartureTime, vj.DepartureDayShift
}

// addDeparture appends t to the first Schedule whose profile is deeply
// equal to profile, or opens a new Schedule when none matches. A time
// that the matching Schedule already holds is not added again.
func addDeparture(ap *AssembledPattern, profile model.OperatingProfile, t string, dayShift int) {
	for i := range ap.Schedules {
		sched := &ap.Schedules[i]
		if !profilesEqual(sched.Profile, profile) {
			continue
		}
		if contains(sched.Departures, t) {
			return
		}
		sched.Departures = append(sched.Departures, t)
		sched.DayShift = append(sched.DayShift, dayShift)
		return
	}
	ap.Schedules = append(ap.Schedules, Schedule{
		Profile:    profile,
		Departures: []string{t},
		DayShift:   []int{dayShift},
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// applyTimingOverrides overwrites the shared Activities/WaitTimes arrays
// at the position of every JourneyPatternTimingLinkRef the VehicleJourney
// overrides — mutating the JP-level projection in place, the same way
// the original implementation applies VJ-specific overrides as it walks
// each vehicle journey in turn. Index 0 is overridden from the link's
// From endpoint; every index is additionally overridden at idx+1 from
// its To endpoint.
func applyTimingOverrides(ap *AssembledPattern, vj *model.VehicleJourney) {
	for _, override := range vj.Timings {
		idx := indexOf(ap.JPTLIDs, override.JourneyPatternTimingLinkRef)
		if idx < 0 {
			continue
		}
		if idx == 0 && override.From.Activity != "" && idx < len(ap.Activities) {
			ap.Activities[idx] = override.From.Activity
			ap.WaitTimes[idx] = override.From.WaitTime
		}
		if override.To.Activity != "" && idx+1 < len(ap.Activities) {
			ap.Activities[idx+1] = override.To.Activity
			ap.WaitTimes[idx+1] = override.To.WaitTime
		}
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// unionProfiles composes the effective operating profile for one
// VehicleJourney: the VJ's own profile fields take precedence field by
// field over the Service's, falling back to the Service's value when
// the VJ leaves a field empty.
func unionProfiles(service, vj model.OperatingProfile) model.OperatingProfile {
	result := service
	if len(vj.RegularDays) > 0 {
		result.RegularDays = vj.RegularDays
	}
	if len(vj.SpecialDaysOperate) > 0 {
		result.SpecialDaysOperate = vj.SpecialDaysOperate
	}
	if len(vj.SpecialDaysNotOperate) > 0 {
		result.SpecialDaysNotOperate = vj.SpecialDaysNotOperate
	}
	if len(vj.BankHolidaysOperate) > 0 {
		result.BankHolidaysOperate = vj.BankHolidaysOperate
	}
	if len(vj.BankHolidaysNotOperate) > 0 {
		result.BankHolidaysNotOperate = vj.BankHolidaysNotOperate
	}
	if len(vj.ServicedOrganisationDaysOperate) > 0 {
		result.ServicedOrganisationDaysOperate = vj.ServicedOrganisationDaysOperate
	}
	if len(vj.ServicedOrganisationDaysNotOperate) > 0 {
		result.ServicedOrganisationDaysNotOperate = vj.ServicedOrganisationDaysNotOperate
	}
	return result
}

// profilesEqual implements deep profile equality as structural equality
// over a canonicalised (sorted-key) JSON representation, rather than
// address or pointer comparison.
func profilesEqual(a, b model.OperatingProfile) bool {
	return canonicalJSON(a) == canonicalJSON(b)
}

func canonicalJSON(p model.OperatingProfile) string {
	canon := p
	canon.RegularDays = sortedCopy(p.RegularDays)
	canon.BankHolidaysOperate = sortedCopy(p.BankHolidaysOperate)
	canon.BankHolidaysNotOperate = sortedCopy(p.BankHolidaysNotOperate)

	data, err := json.Marshal(canon)
	if err != nil {
		return ""
	}
	return string(data)
}

func sortedCopy(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
