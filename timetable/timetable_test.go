package timetable

import (
	"testing"

	"github.com/uktransitdata/corpus-pipeline/model"
	"github.com/uktransitdata/corpus-pipeline/testutil"
	"github.com/uktransitdata/corpus-pipeline/txcloader"
)

func TestAssembleProjectsTimingLinks(t *testing.T) {
	doc, err := txcloader.Load(testutil.TestFileName, []byte(testutil.TransXChangeFragment))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	got, vehicles := Assemble(doc, &doc.Services[0])
	if len(got) != 1 {
		t.Fatalf("expected 1 assembled pattern, got %d", len(got))
	}
	ap := got[0]

	if ap.Vehicle != "DD" {
		t.Errorf("Vehicle = %q, want DD", ap.Vehicle)
	}
	if vehicles["DD"] != "Double Decker" {
		t.Errorf("vehicles[DD] = %q, want Double Decker", vehicles["DD"])
	}
	if len(ap.WaitTimes) != 2 || ap.WaitTimes[0] != "PT1M" || ap.WaitTimes[1] != "PT2M" {
		t.Errorf("expected VJTL From/To overrides applied to WaitTimes, got %v", ap.WaitTimes)
	}

	wantStops := []string{"1800EA00100", "1800EA00200"}
	if len(ap.StopChain) != len(wantStops) {
		t.Fatalf("StopChain = %v, want %v", ap.StopChain, wantStops)
	}
	for i, s := range wantStops {
		if ap.StopChain[i] != s {
			t.Errorf("StopChain[%d] = %q, want %q", i, ap.StopChain[i], s)
		}
	}
	if len(ap.Activities) != 2 || ap.Activities[0] != "pickUp" || ap.Activities[1] != "setDown" {
		t.Errorf("unexpected default Activities: %v", ap.Activities)
	}
	if len(ap.RunTimes) != 1 || ap.RunTimes[0] != "PT5M" {
		t.Errorf("unexpected RunTimes: %v", ap.RunTimes)
	}
}

func TestAssembleJoinsDirectVehicleJourney(t *testing.T) {
	doc, err := txcloader.Load(testutil.TestFileName, []byte(testutil.TransXChangeFragment))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	got, _ := Assemble(doc, &doc.Services[0])
	ap := got[0]
	if len(ap.Schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(ap.Schedules))
	}
	sched := ap.Schedules[0]
	if len(sched.Departures) != 1 || sched.Departures[0] != "08:00:00" {
		t.Errorf("unexpected departures: %v", sched.Departures)
	}
}

func TestAssembleChasesVehicleJourneyRef(t *testing.T) {
	xml := `<TransXChange>
		<Services>
			<Service>
				<ServiceCode>EA010</ServiceCode>
				<StandardService>
					<JourneyPattern id="JP1">
						<JourneyPatternSectionRefs>JPS1</JourneyPatternSectionRefs>
					</JourneyPattern>
				</StandardService>
			</Service>
		</Services>
		<JourneyPatternSections>
			<JourneyPatternSection id="JPS1">
				<JourneyPatternTimingLink id="JPTL1">
					<From><StopPointRef>A</StopPointRef></From>
					<To><StopPointRef>B</StopPointRef></To>
					<RunTime>PT5M</RunTime>
				</JourneyPatternTimingLink>
			</JourneyPatternSection>
		</JourneyPatternSections>
		<VehicleJourneys>
			<VehicleJourney>
				<VehicleJourneyCode>VJ1</VehicleJourneyCode>
				<JourneyPatternRef>JP1</JourneyPatternRef>
				<DepartureTime>07:00:00</DepartureTime>
			</VehicleJourney>
			<VehicleJourney>
				<VehicleJourneyCode>VJ2</VehicleJourneyCode>
				<VehicleJourneyRef>VJ1</VehicleJourneyRef>
				<OperatingProfile>
					<RegularDayType><DaysOfWeek><Saturday/></DaysOfWeek></RegularDayType>
				</OperatingProfile>
			</VehicleJourney>
		</VehicleJourneys>
	</TransXChange>`

	doc, err := txcloader.Load("ref.xml", []byte(xml))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	got, _ := Assemble(doc, &doc.Services[0])
	ap := got[0]
	if len(ap.Schedules) != 2 {
		t.Fatalf("expected 2 schedules (VJ1's empty profile, VJ2's own Saturday profile), got %d", len(ap.Schedules))
	}
	if len(ap.Schedules[1].Departures) != 1 || ap.Schedules[1].Departures[0] != "07:00:00" {
		t.Fatalf("expected the ref-chased departure 07:00:00 under VJ2's profile, got %v", ap.Schedules[1].Departures)
	}
}

func TestProfilesEqualIgnoresOrder(t *testing.T) {
	a := model.OperatingProfile{RegularDays: []string{"Monday", "Tuesday"}}
	b := model.OperatingProfile{RegularDays: []string{"Tuesday", "Monday"}}
	if !profilesEqual(a, b) {
		t.Error("expected profiles with same days in different order to be equal")
	}
	c := model.OperatingProfile{RegularDays: []string{"Monday"}}
	if profilesEqual(a, c) {
		t.Error("expected profiles with different day sets to be unequal")
	}
}

func TestUnionProfilesPrefersVehicleJourney(t *testing.T) {
	service := model.OperatingProfile{RegularDays: []string{"Monday"}}
	vj := model.OperatingProfile{RegularDays: []string{"Saturday"}}
	got := unionProfiles(service, vj)
	if len(got.RegularDays) != 1 || got.RegularDays[0] != "Saturday" {
		t.Errorf("expected VJ profile to win, got %v", got.RegularDays)
	}

	emptyVJ := model.OperatingProfile{}
	got2 := unionProfiles(service, emptyVJ)
	if len(got2.RegularDays) != 1 || got2.RegularDays[0] != "Monday" {
		t.Errorf("expected Service profile fallback, got %v", got2.RegularDays)
	}
}
