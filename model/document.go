// Package model defines the TransXChange-derived domain types produced by
// the txcloader normalisation layer and consumed by every downstream
// pipeline stage. These are plain Go structs, not XML-tagged: they are
// built by txcloader from the generic map mxj decodes, not unmarshalled
// directly from XML.
package model

import "time"

// Slug is a URL-safe, canonicalised identifier derived from a service's
// line names, origin and destination.
type Slug string

// Validate reports whether s contains only the slug charset
// (a-z, 0-9, hyphen, plus, dot, pipe).
func (s Slug) Validate() bool {
	for _, r := range string(s) {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '+' || r == '.' || r == '|':
		default:
			return false
		}
	}
	return len(s) > 0
}

// Document is one decoded TransXChange file.
type Document struct {
	FileName  string
	Services  []Service
	Operators []Operator

	JourneyPatternSections []JourneyPatternSection
	RouteSections          []RouteSection
	RouteDefinitions       []RouteDefinition
	Routes                 []Route
	VehicleJourneys        []VehicleJourney
	ServicedOrganisations  []ServicedOrganisation
	StopPoints             []StopPoint

	// Index maps built once per document, used by every stage that
	// resolves a reference instead of scanning.
	journeyPatternSectionsByID map[string]*JourneyPatternSection
	routeSectionsByID          map[string]*RouteSection
	routeDefinitionsByID       map[string]*RouteDefinition
	vehicleJourneysByCode      map[string]*VehicleJourney
}

// RouteDefinition is a TransXChange top-level Route: an ordered
// reference into one or more RouteSections, distinct from the
// reconstructed model.Route this package produces as output.
type RouteDefinition struct {
	ID               string
	Description      string
	RouteSectionRefs []string
}

// BuildIndexes populates the document's lookup maps. Must be called once
// after the document's slices are fully populated and before any stage
// resolves references.
func (d *Document) BuildIndexes() {
	d.journeyPatternSectionsByID = make(map[string]*JourneyPatternSection, len(d.JourneyPatternSections))
	for i := range d.JourneyPatternSections {
		jps := &d.JourneyPatternSections[i]
		d.journeyPatternSectionsByID[jps.ID] = jps
	}

	d.routeSectionsByID = make(map[string]*RouteSection, len(d.RouteSections))
	for i := range d.RouteSections {
		rs := &d.RouteSections[i]
		d.routeSectionsByID[rs.ID] = rs
	}

	d.vehicleJourneysByCode = make(map[string]*VehicleJourney, len(d.VehicleJourneys))
	for i := range d.VehicleJourneys {
		vj := &d.VehicleJourneys[i]
		d.vehicleJourneysByCode[vj.VehicleJourneyCode] = vj
	}

	d.routeDefinitionsByID = make(map[string]*RouteDefinition, len(d.RouteDefinitions))
	for i := range d.RouteDefinitions {
		rd := &d.RouteDefinitions[i]
		d.routeDefinitionsByID[rd.ID] = rd
	}
}

// RouteDefinitionByID resolves a JourneyPattern's RouteRef indirection.
func (d *Document) RouteDefinitionByID(id string) (*RouteDefinition, bool) {
	rd, ok := d.routeDefinitionsByID[id]
	return rd, ok
}

// JourneyPatternSectionByID resolves a JourneyPatternSectionRefs indirection.
func (d *Document) JourneyPatternSectionByID(id string) (*JourneyPatternSection, bool) {
	jps, ok := d.journeyPatternSectionsByID[id]
	return jps, ok
}

// RouteSectionByID resolves a RouteSectionRef indirection.
func (d *Document) RouteSectionByID(id string) (*RouteSection, bool) {
	rs, ok := d.routeSectionsByID[id]
	return rs, ok
}

// VehicleJourneyByCode resolves a VehicleJourneyRef indirection.
func (d *Document) VehicleJourneyByCode(code string) (*VehicleJourney, bool) {
	vj, ok := d.vehicleJourneysByCode[code]
	return vj, ok
}

// Operator is a TransXChange operator record.
type Operator struct {
	NationalOperatorCode string
	OperatorCode         string
	OperatorShortName    string
	OperatorNameOnLicence string
	TradingName          string
}

// DateRange is an inclusive start/end pair, either bound optional.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Service is a TransXChange Service: one or more Lines, an OperatingPeriod,
// and the contents of its StandardService (origin, destination, vias and
// JourneyPatterns). FlexibleService content is not modelled.
type Service struct {
	ServiceCode     string
	Lines           []Line
	OperatingPeriod DateRange
	Origin          string
	Destination     string
	Vias            []string
	Description     string
	Mode            string
	RegisteredOperatorRef string
	JourneyPatterns []JourneyPattern
	OperatingProfile OperatingProfile
	PublicUse       bool
}

// Line is a named service line.
type Line struct {
	ID       string
	LineName string
}

// JourneyPattern is one branch of a Service's route, reached either via an
// explicit Route (RouteRef) or implicitly via its JourneyPatternSectionRefs.
type JourneyPattern struct {
	ID                       string
	RouteRef                 string
	Direction                string
	JourneyPatternSectionRefs []string

	// Not set by txcloader or the timetable assembler; the assembler reads
	// departure times from VehicleJourneys (following VehicleJourneyRef).
	DepartureTime      string
	DepartureDayShift  int
}

// JourneyPatternSection is an ordered list of timing links describing one
// JourneyPattern's stop-to-stop structure.
type JourneyPatternSection struct {
	ID                        string
	JourneyPatternTimingLinks []JourneyPatternTimingLink
}

// JourneyPatternTimingLink is one stop-to-stop hop within a
// JourneyPatternSection.
type JourneyPatternTimingLink struct {
	ID             string
	FromStopRef    string
	FromActivity   string
	ToStopRef      string
	ToActivity     string
	RunTime        string
	WaitTime       string
}

// VehicleJourney is a scheduled run of a JourneyPattern at a given
// departure time, possibly overriding individual timing links.
type VehicleJourney struct {
	VehicleJourneyCode string
	VehicleJourneyRef  string // indirection to another VehicleJourney
	JourneyPatternRef  string
	ServiceRef         string
	LineRef            string
	DepartureTime      string
	DepartureDayShift  int
	OperatingProfile   OperatingProfile
	Timings            []VehicleJourneyTimingLink
	Vehicle            VehicleTypeInfo
}

// VehicleTypeInfo is a VehicleJourney's Operational.VehicleType metadata.
type VehicleTypeInfo struct {
	Code        string
	Description string
}

// VehicleJourneyTimingLink overrides a JourneyPatternTimingLink's
// Activity/WaitTime for one specific VehicleJourney, indexed by its
// position within the JourneyPattern. Index 0 is overridden by From,
// every other position by To at index+1.
type VehicleJourneyTimingLink struct {
	JourneyPatternTimingLinkRef string
	From                        VehicleJourneyTimingLinkEndpoint
	To                          VehicleJourneyTimingLinkEndpoint
}

// VehicleJourneyTimingLinkEndpoint is one endpoint's override within a
// VehicleJourneyTimingLink.
type VehicleJourneyTimingLinkEndpoint struct {
	Activity string
	WaitTime string
}

// OperatingProfile is the union of a Service's and a VehicleJourney's
// regular days of operation, special days, bank holidays and serviced
// organisation (school term / holiday) rules.
type OperatingProfile struct {
	RegularDays         []string
	SpecialDaysOperate  []DateRange
	SpecialDaysNotOperate []DateRange
	BankHolidaysOperate   []string
	BankHolidaysNotOperate []string
	ServicedOrganisationDaysOperate   []ServicedOrganisationRef
	ServicedOrganisationDaysNotOperate []ServicedOrganisationRef
}

// ServicedOrganisationRef references a ServicedOrganisation, qualified by
// whether it refers to the organisation's working days or holiday days.
type ServicedOrganisationRef struct {
	OrganisationRef string
	WorkingDays     bool
}

// ServicedOrganisation is a school or similar organisation whose term and
// holiday dates gate specific VehicleJourneys.
type ServicedOrganisation struct {
	OrganisationCode string
	Name             string
	WorkingDays      []DateRange
	Holidays         []DateRange
}

// Route is a reconstructed stop-to-stop path for one JourneyPattern,
// produced by the Route Reconstructor either from RouteSections (with
// track geometry, per-link distance and direction) or, failing that,
// from the JourneyPattern's own timing links.
type Route struct {
	JourneyPatternID string
	RouteLinkIDs     []string
	Description      string
	Stops            []string
	Distance         []int
	Direction        []string
	Track            []TrackPoint
}

// RouteSection is a TransXChange RouteSection: an ordered list of
// RouteLinks with track geometry.
type RouteSection struct {
	ID    string
	Links []RouteLink
}

// RouteLink is one stop-to-stop hop with optional track geometry. Distance
// is in metres; a missing or unparseable value is left at zero.
type RouteLink struct {
	ID        string
	FromStop  string
	ToStop    string
	Distance  int
	Direction string
	Track     []TrackPoint
}

// TrackPoint is a single WGS-84 longitude/latitude pair resolved from a
// TransXChange Translation or Easting/Northing pair.
type TrackPoint struct {
	Longitude float64
	Latitude  float64
}

// StopPoint is one TNDS-referenced stop, normalised from either the
// StopPoint or AnnotatedStopPointRef shape a document's StopPoints
// block may use.
type StopPoint struct {
	AtcoCode    string
	Name        string
	LocalityRef string
}

// ServiceRecord is the per-slug summary record persisted by the slug
// index and merger.
type ServiceRecord struct {
	FileName     string
	Mode         string
	Region       string
	LineIDs      []string
	LineNames    []string
	Origin       string
	Destination  string
	Vias         []string
	Description  string
	Operators    []string
	LastModified time.Time
	PublicUse    bool
	StartDate    *time.Time
	EndDate      *time.Time
	Vehicles     map[string]string
}
