// Package txcloader decodes a TransXChange document into a normalised
// model.Document. It parses via mxj, the same generic map-based approach
// the original Python implementation took with xmltodict, and then
// coerces every schema-declared one-or-many field into a Go slice
// regardless of how many times it occurred in the source document —
// mxj, like xmltodict, hands back a bare map for a single occurrence and
// a slice for repeated ones, so without this normalisation step
// downstream code would have to type-switch on cardinality everywhere.
package txcloader

import (
	"strconv"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/model"
)

// Load decodes raw TransXChange XML bytes into a normalised Document.
func Load(fileName string, data []byte) (*model.Document, error) {
	root, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot decode TransXChange XML").
			WithFile(fileName).WithCause(err)
	}

	txc, ok := getMap(map[string]interface{}(root), "TransXChange")
	if !ok {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "missing TransXChange root element").
			WithFile(fileName)
	}

	doc := &model.Document{FileName: fileName}

	if servicesNode, ok := getMap(txc, "Services"); ok {
		for _, svcNode := range asList(servicesNode["Service"]) {
			svcMap, ok := svcNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.Services = append(doc.Services, parseService(svcMap))
		}
	}

	if sectionsNode, ok := getMap(txc, "JourneyPatternSections"); ok {
		for _, sNode := range asList(sectionsNode["JourneyPatternSection"]) {
			sMap, ok := sNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.JourneyPatternSections = append(doc.JourneyPatternSections, parseJourneyPatternSection(sMap))
		}
	}

	if routesNode, ok := getMap(txc, "RouteSections"); ok {
		for _, rNode := range asList(routesNode["RouteSection"]) {
			rMap, ok := rNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.RouteSections = append(doc.RouteSections, parseRouteSection(rMap))
		}
	}

	if routesNode, ok := getMap(txc, "Routes"); ok {
		for _, rNode := range asList(routesNode["Route"]) {
			rMap, ok := rNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.RouteDefinitions = append(doc.RouteDefinitions, parseRouteDefinition(rMap))
		}
	}

	if vjsNode, ok := getMap(txc, "VehicleJourneys"); ok {
		for _, vNode := range asList(vjsNode["VehicleJourney"]) {
			vMap, ok := vNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.VehicleJourneys = append(doc.VehicleJourneys, parseVehicleJourney(vMap))
		}
	}

	if operatorsNode, ok := getMap(txc, "Operators"); ok {
		for _, oNode := range asList(operatorsNode["Operator"]) {
			oMap, ok := oNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.Operators = append(doc.Operators, parseOperator(oMap))
		}
	}

	if stopsNode, ok := getMap(txc, "StopPoints"); ok {
		doc.StopPoints = parseStopPoints(stopsNode)
	}

	if orgsNode, ok := getMap(txc, "ServicedOrganisations"); ok {
		for _, oNode := range asList(orgsNode["ServicedOrganisation"]) {
			oMap, ok := oNode.(map[string]interface{})
			if !ok {
				continue
			}
			doc.ServicedOrganisations = append(doc.ServicedOrganisations, parseServicedOrganisation(oMap))
		}
	}

	doc.BuildIndexes()
	return doc, nil
}

func parseService(m map[string]interface{}) model.Service {
	svc := model.Service{
		ServiceCode:           asString(m["ServiceCode"]),
		Mode:                  asString(m["Mode"]),
		RegisteredOperatorRef: asString(m["RegisteredOperatorRef"]),
		PublicUse:             asString(m["PublicUse"]) != "false",
	}

	if linesNode, ok := getMap(m, "Lines"); ok {
		for _, lNode := range asList(linesNode["Line"]) {
			lMap, ok := lNode.(map[string]interface{})
			if !ok {
				continue
			}
			svc.Lines = append(svc.Lines, model.Line{
				ID:       attrString(lMap, "id"),
				LineName: asString(lMap["LineName"]),
			})
		}
	}

	if opNode, ok := getMap(m, "OperatingPeriod"); ok {
		svc.OperatingPeriod = parseDateRange(asString(opNode["StartDate"]), asString(opNode["EndDate"]))
	}

	svc.OperatingProfile = parseOperatingProfileNode(m["OperatingProfile"])

	if ss, ok := getMap(m, "StandardService"); ok {
		svc.Origin = asString(ss["Origin"])
		svc.Destination = asString(ss["Destination"])
		svc.Description = asString(ss["Description"])
		if vias, ok := getMap(ss, "Vias"); ok {
			for _, v := range asList(vias["Via"]) {
				svc.Vias = append(svc.Vias, asString(v))
			}
		}
		for _, jpNode := range asList(ss["JourneyPattern"]) {
			jpMap, ok := jpNode.(map[string]interface{})
			if !ok {
				continue
			}
			svc.JourneyPatterns = append(svc.JourneyPatterns, parseJourneyPattern(jpMap))
		}
	}

	return svc
}

func parseJourneyPattern(m map[string]interface{}) model.JourneyPattern {
	jp := model.JourneyPattern{
		ID:        attrString(m, "id"),
		RouteRef:  asString(m["RouteRef"]),
		Direction: asString(m["Direction"]),
	}
	for _, ref := range asList(m["JourneyPatternSectionRefs"]) {
		jp.JourneyPatternSectionRefs = append(jp.JourneyPatternSectionRefs, asString(ref))
	}
	return jp
}

func parseJourneyPatternSection(m map[string]interface{}) model.JourneyPatternSection {
	section := model.JourneyPatternSection{ID: attrString(m, "id")}
	for _, lNode := range asList(m["JourneyPatternTimingLink"]) {
		lMap, ok := lNode.(map[string]interface{})
		if !ok {
			continue
		}
		link := model.JourneyPatternTimingLink{
			ID:      attrString(lMap, "id"),
			RunTime: asString(lMap["RunTime"]),
			WaitTime: asString(lMap["WaitTime"]),
		}
		if from, ok := getMap(lMap, "From"); ok {
			link.FromStopRef = asString(from["StopPointRef"])
			link.FromActivity = asString(from["Activity"])
		}
		if to, ok := getMap(lMap, "To"); ok {
			link.ToStopRef = asString(to["StopPointRef"])
			link.ToActivity = asString(to["Activity"])
		}
		section.JourneyPatternTimingLinks = append(section.JourneyPatternTimingLinks, link)
	}
	return section
}

// parseStopPoints normalises a document's StopPoints block, which uses
// either the full StopPoint shape or the lighter AnnotatedStopPointRef
// shape depending on the source TXC profile.
func parseStopPoints(stopsNode map[string]interface{}) []model.StopPoint {
	var points []model.StopPoint

	if _, ok := stopsNode["StopPoint"]; ok {
		for _, node := range asList(stopsNode["StopPoint"]) {
			sMap, ok := node.(map[string]interface{})
			if !ok {
				continue
			}
			point := model.StopPoint{AtcoCode: asString(sMap["AtcoCode"])}
			if desc, ok := getMap(sMap, "Descriptor"); ok {
				point.Name = asString(desc["CommonName"])
			}
			if place, ok := getMap(sMap, "Place"); ok {
				point.LocalityRef = asString(place["NptgLocalityRef"])
			}
			points = append(points, point)
		}
		return points
	}

	for _, node := range asList(stopsNode["AnnotatedStopPointRef"]) {
		sMap, ok := node.(map[string]interface{})
		if !ok {
			continue
		}
		points = append(points, model.StopPoint{
			AtcoCode: asString(sMap["StopPointRef"]),
			Name:     asString(sMap["CommonName"]),
		})
	}
	return points
}

func parseRouteDefinition(m map[string]interface{}) model.RouteDefinition {
	rd := model.RouteDefinition{
		ID:          attrString(m, "id"),
		Description: asString(m["Description"]),
	}
	for _, ref := range asList(m["RouteSectionRef"]) {
		rd.RouteSectionRefs = append(rd.RouteSectionRefs, asString(ref))
	}
	return rd
}

func parseRouteSection(m map[string]interface{}) model.RouteSection {
	section := model.RouteSection{ID: attrString(m, "id")}
	for _, lNode := range asList(m["RouteLink"]) {
		lMap, ok := lNode.(map[string]interface{})
		if !ok {
			continue
		}
		link := model.RouteLink{
			ID:        attrString(lMap, "id"),
			FromStop:  asString(firstOf(lMap, "From", "StopPointRef")),
			ToStop:    asString(firstOf(lMap, "To", "StopPointRef")),
			Distance:  asInt(lMap["Distance"]),
			Direction: asString(lMap["Direction"]),
		}
		if track, ok := getMap(lMap, "Track"); ok {
			link.Track = parseTrack(track)
		}
		section.Links = append(section.Links, link)
	}
	return section
}

func parseTrack(track map[string]interface{}) []model.TrackPoint {
	var points []model.TrackPoint
	mappingNode, ok := getMap(track, "Mapping")
	if !ok {
		return points
	}
	for _, locNode := range asList(mappingNode["Location"]) {
		locMap, ok := locNode.(map[string]interface{})
		if !ok {
			continue
		}
		if lon, lat, ok := resolveLocation(locMap); ok {
			points = append(points, model.TrackPoint{Longitude: lon, Latitude: lat})
		}
	}
	return points
}

// resolveLocation extracts a longitude/latitude pair from a TransXChange
// Location element, preferring an explicit Translation sub-object (WGS-84
// already) and falling back to an Easting/Northing pair transformed from
// OSGB36. A missing or zero-sentinel value means no coordinate.
func resolveLocation(loc map[string]interface{}) (lon, lat float64, ok bool) {
	node := loc
	if translation, hasTranslation := getMap(loc, "Translation"); hasTranslation {
		node = translation
	}

	lonStr := asString(node["Longitude"])
	latStr := asString(node["Latitude"])
	if lonStr != "" && latStr != "" && lonStr != "0.000000000" && latStr != "0.000000000" {
		lonF, err1 := strconv.ParseFloat(lonStr, 64)
		latF, err2 := strconv.ParseFloat(latStr, 64)
		if err1 == nil && err2 == nil {
			return lonF, latF, true
		}
	}

	eastingStr := asString(loc["Easting"])
	northingStr := asString(loc["Northing"])
	if eastingStr != "" && northingStr != "" {
		easting, err1 := strconv.ParseFloat(eastingStr, 64)
		northing, err2 := strconv.ParseFloat(northingStr, 64)
		if err1 == nil && err2 == nil {
			return transformFn(easting, northing)
		}
	}

	return 0, 0, false
}

// transformFn converts an OSGB36 Easting/Northing pair to WGS-84. It
// defaults to the identity; pipeline.New replaces it with
// coords.Transform through SetCoordinateTransform.
var transformFn = func(easting, northing float64) (float64, float64) {
	return identityTransform(easting, northing)
}

// SetCoordinateTransform lets the pipeline wire the real OSGB36->WGS84
// transform in without txcloader importing the coords package directly.
func SetCoordinateTransform(fn func(easting, northing float64) (lon, lat float64)) {
	transformFn = fn
}

func identityTransform(easting, northing float64) (float64, float64) {
	return easting, northing
}

func parseVehicleJourney(m map[string]interface{}) model.VehicleJourney {
	vj := model.VehicleJourney{
		VehicleJourneyCode: asString(m["VehicleJourneyCode"]),
		VehicleJourneyRef:  asString(m["VehicleJourneyRef"]),
		JourneyPatternRef:  asString(m["JourneyPatternRef"]),
		ServiceRef:         asString(m["ServiceRef"]),
		LineRef:            asString(m["LineRef"]),
		DepartureTime:      asString(m["DepartureTime"]),
	}
	if shift := asString(m["DepartureDayShift"]); shift != "" {
		if n, err := strconv.Atoi(shift); err == nil {
			vj.DepartureDayShift = n
		}
	}
	vj.OperatingProfile = parseOperatingProfileNode(m["OperatingProfile"])

	if operational, ok := getMap(m, "Operational"); ok {
		if vt, ok := getMap(operational, "VehicleType"); ok {
			vj.Vehicle = model.VehicleTypeInfo{
				Code:        asString(vt["VehicleTypeCode"]),
				Description: asString(vt["Description"]),
			}
		}
	}

	for _, tNode := range asList(m["VehicleJourneyTimingLink"]) {
		tMap, ok := tNode.(map[string]interface{})
		if !ok {
			continue
		}
		link := model.VehicleJourneyTimingLink{
			JourneyPatternTimingLinkRef: asString(tMap["JourneyPatternTimingLinkRef"]),
		}
		if from, ok := getMap(tMap, "From"); ok {
			link.From = model.VehicleJourneyTimingLinkEndpoint{
				Activity: asString(from["Activity"]),
				WaitTime: asString(from["WaitTime"]),
			}
		}
		if to, ok := getMap(tMap, "To"); ok {
			link.To = model.VehicleJourneyTimingLinkEndpoint{
				Activity: asString(to["Activity"]),
				WaitTime: asString(to["WaitTime"]),
			}
		}
		vj.Timings = append(vj.Timings, link)
	}
	return vj
}

func parseOperatingProfileNode(node interface{}) model.OperatingProfile {
	m, ok := node.(map[string]interface{})
	if !ok {
		return model.OperatingProfile{}
	}

	profile := model.OperatingProfile{}
	if rd, ok := getMap(m, "RegularDayType"); ok {
		if days, ok := getMap(rd, "DaysOfWeek"); ok {
			for day := range days {
				profile.RegularDays = append(profile.RegularDays, day)
			}
		}
	}

	if sd, ok := getMap(m, "SpecialDaysOperation"); ok {
		if op, ok := getMap(sd, "DaysOfOperation"); ok {
			profile.SpecialDaysOperate = append(profile.SpecialDaysOperate, parseDateExceptionList(op)...)
		}
		if nonOp, ok := getMap(sd, "DaysOfNonOperation"); ok {
			profile.SpecialDaysNotOperate = append(profile.SpecialDaysNotOperate, parseDateExceptionList(nonOp)...)
		}
	}

	if bh, ok := getMap(m, "BankHolidayOperation"); ok {
		if op, ok := getMap(bh, "DaysOfOperation"); ok {
			for day := range op {
				profile.BankHolidaysOperate = append(profile.BankHolidaysOperate, day)
			}
		}
		if nonOp, ok := getMap(bh, "DaysOfNonOperation"); ok {
			for day := range nonOp {
				profile.BankHolidaysNotOperate = append(profile.BankHolidaysNotOperate, day)
			}
		}
	}

	if so, ok := getMap(m, "ServicedOrganisationDayType"); ok {
		if op, ok := getMap(so, "DaysOfOperation"); ok {
			profile.ServicedOrganisationDaysOperate = append(profile.ServicedOrganisationDaysOperate,
				parseServicedOrgRefs(op)...)
		}
		if nonOp, ok := getMap(so, "DaysOfNonOperation"); ok {
			profile.ServicedOrganisationDaysNotOperate = append(profile.ServicedOrganisationDaysNotOperate,
				parseServicedOrgRefs(nonOp)...)
		}
	}

	return profile
}

func parseDateExceptionList(m map[string]interface{}) []model.DateRange {
	var ranges []model.DateRange
	for _, node := range asList(m["DateRange"]) {
		dMap, ok := node.(map[string]interface{})
		if !ok {
			continue
		}
		ranges = append(ranges, parseDateRange(asString(dMap["StartDate"]), asString(dMap["EndDate"])))
	}
	return ranges
}

func parseServicedOrgRefs(m map[string]interface{}) []model.ServicedOrganisationRef {
	var refs []model.ServicedOrganisationRef
	if wd, ok := getMap(m, "WorkingDays"); ok {
		for _, ref := range asList(wd["ServicedOrganisationRef"]) {
			refs = append(refs, model.ServicedOrganisationRef{OrganisationRef: asString(ref), WorkingDays: true})
		}
	}
	if hol, ok := getMap(m, "Holiday"); ok {
		for _, ref := range asList(hol["ServicedOrganisationRef"]) {
			refs = append(refs, model.ServicedOrganisationRef{OrganisationRef: asString(ref), WorkingDays: false})
		}
	}
	return refs
}

func parseOperator(m map[string]interface{}) model.Operator {
	return model.Operator{
		NationalOperatorCode:  asString(m["NationalOperatorCode"]),
		OperatorCode:          asString(m["OperatorCode"]),
		OperatorShortName:     asString(m["OperatorShortName"]),
		OperatorNameOnLicence: asString(m["OperatorNameOnLicence"]),
		TradingName:           asString(m["TradingName"]),
	}
}

func parseServicedOrganisation(m map[string]interface{}) model.ServicedOrganisation {
	org := model.ServicedOrganisation{
		OrganisationCode: asString(m["OrganisationCode"]),
		Name:             asString(m["Name"]),
	}
	if wd, ok := getMap(m, "WorkingDays"); ok {
		org.WorkingDays = parseDateExceptionList(wd)
	}
	if hol, ok := getMap(m, "Holidays"); ok {
		org.Holidays = parseDateExceptionList(hol)
	}
	return org
}

func parseDateRange(start, end string) model.DateRange {
	var dr model.DateRange
	if t, ok := parseDate(start); ok {
		dr.Start = &t
	}
	if t, ok := parseDate(end); ok {
		dr.End = &t
	}
	return dr
}

// parseDate parses a TransXChange date (plain "2023-01-01" or full
// RFC3339) into a time.Time, truncated to midnight UTC for date-only
// comparison purposes.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func firstOf(m map[string]interface{}, path ...string) interface{} {
	cur := interface{}(m)
	for _, key := range path {
		curMap, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = curMap[key]
	}
	return cur
}

// attrString reads an mxj attribute, which mxj keys with a leading "-".
func attrString(m map[string]interface{}, name string) string {
	if v, ok := m["-"+name]; ok {
		return asString(v)
	}
	return ""
}

// getMap fetches a child key as a map, handling mxj's habit of returning
// a plain map for one occurrence of an element.
func getMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	child, ok := v.(map[string]interface{})
	return child, ok
}

// asList normalises a field's decoded value into a slice regardless of
// whether mxj produced a single map (one occurrence), a slice (multiple
// occurrences) or nil (absent) — the core of the polyvariant fix.
func asList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	default:
		return []interface{}{val}
	}
}

// asString extracts the textual value of a decoded node, unwrapping the
// {"#text": "..."} shape mxj produces for elements that carry both
// attributes and text content, and trimming surrounding whitespace.
func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case map[string]interface{}:
		if text, ok := val["#text"]; ok {
			return asString(text)
		}
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// asInt parses a decoded node's textual value as an integer, coercing a
// missing or malformed value to zero rather than failing the document.
func asInt(v interface{}) int {
	s := asString(v)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
