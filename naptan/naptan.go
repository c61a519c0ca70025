// Package naptan decodes the NaPTAN access-nodes XML feed for a single
// ATCO area into stop-point and stop-area records, classifying every
// stop point by its on-street/off-street StopClassification the way the
// source reference implementation's match dispatch does, and produces
// GeoJSON feature collections alongside the flat tables.
package naptan

import (
	"github.com/clbanning/mxj/v2"
	"github.com/paulmach/go.geojson"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/coords"
	"github.com/uktransitdata/corpus-pipeline/mxjutil"
)

// StopPoint is one classified NaPTAN stop.
type StopPoint struct {
	AtcoCode        string
	NaptanCode      string
	Name            string
	Landmark        string
	Street          string
	Crossing        string
	Indicator       string
	LocalityRef     string
	LocalityName    string
	Town            string
	Suburb          string
	Longitude       float64
	Latitude        float64
	Category        string // bus, taxi, car, air, ferry, rail, metro, telecabine, busAndCoach
	StopType        string
	OnStreet        bool
	SubType         string
	Bearing         string
	StopAreaRefs    []string
	AdminAreaRef    string
	PlusbusZoneRefs []string
	Created         string
	Updated         string
	Status          string
	Public          bool
}

// StopArea groups related StopPoints, optionally nested under a parent.
type StopArea struct {
	Code         string
	Parent       string
	Name         string
	AdminAreaRef string
	Type         string
	Longitude    float64
	Latitude     float64
	Created      string
	Updated      string
}

// Result is one ATCO area's decoded stop points and stop areas.
type Result struct {
	StopPoints []StopPoint
	StopAreas  []StopArea
}

// Parse decodes raw NaPTAN access-node XML for one ATCO area.
// localityNames resolves a stop's NptgLocalityRef to a human-readable
// name, typically sourced from an earlier nptg.Parse call.
func Parse(data []byte, localityNames map[string]string) (*Result, error) {
	root, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot decode NaPTAN XML").WithCause(err)
	}

	naptan, ok := mxjutil.GetMap(map[string]interface{}(root), "NaPTAN")
	if !ok {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "missing NaPTAN root element")
	}

	result := &Result{}

	if stopsNode, ok := mxjutil.GetMap(naptan, "StopPoints"); ok {
		for _, node := range mxjutil.AsList(stopsNode["StopPoint"]) {
			pMap, ok := node.(map[string]interface{})
			if !ok {
				continue
			}
			if sp, ok := parseStopPoint(pMap, localityNames); ok {
				result.StopPoints = append(result.StopPoints, sp)
			}
		}
	}

	if areasNode, ok := mxjutil.GetMap(naptan, "StopAreas"); ok {
		for _, node := range mxjutil.AsList(areasNode["StopArea"]) {
			aMap, ok := node.(map[string]interface{})
			if !ok {
				continue
			}
			if area, ok := parseStopArea(aMap); ok {
				result.StopAreas = append(result.StopAreas, area)
			}
		}
	}

	return result, nil
}

func parseStopPoint(m map[string]interface{}, localityNames map[string]string) (StopPoint, bool) {
	atcoCode := mxjutil.AsString(m["AtcoCode"])
	if atcoCode == "" {
		return StopPoint{}, false
	}

	var lon, lat float64
	var ok bool
	if place, hasPlace := mxjutil.GetMap(m, "Place"); hasPlace {
		lon, lat, ok = resolveLocation(place)
	}
	if !ok {
		return StopPoint{}, false
	}

	sp := StopPoint{
		AtcoCode:  atcoCode,
		Longitude: lon,
		Latitude:  lat,
	}

	sp.NaptanCode = mxjutil.AsString(m["NaptanCode"])
	sp.Landmark = mxjutil.AsString(m["Landmark"])
	sp.Street = mxjutil.AsString(m["Street"])
	sp.Crossing = mxjutil.AsString(m["Crossing"])
	sp.Created = mxjutil.AsString(m["CreationDateTime"])
	sp.Updated = mxjutil.AsString(m["ModificationDateTime"])
	sp.Status = mxjutil.AsString(m["Status"])
	sp.AdminAreaRef = mxjutil.AsString(m["AdministrativeAreaRef"])
	sp.Public = mxjutil.AsString(m["Public"]) != "false"

	if desc, ok := mxjutil.GetMap(m, "Descriptor"); ok {
		sp.Name = mxjutil.AsString(desc["CommonName"])
		sp.Indicator = mxjutil.AsString(desc["Indicator"])
	}
	if place, ok := mxjutil.GetMap(m, "Place"); ok {
		sp.LocalityRef = mxjutil.AsString(place["NptgLocalityRef"])
		sp.Town = mxjutil.AsString(place["Town"])
		sp.Suburb = mxjutil.AsString(place["Suburb"])
		sp.LocalityName = localityNames[sp.LocalityRef]
	}

	classNode, _ := mxjutil.GetMap(m, "StopClassification")
	sp.StopType = mxjutil.AsString(classNode["StopType"])
	_, sp.OnStreet = mxjutil.GetMap(classNode, "OnStreet")
	classify(&sp, classNode)

	if areasNode, ok := m["StopAreas"]; ok {
		if areasMap, ok := areasNode.(map[string]interface{}); ok {
			for _, ref := range mxjutil.AsList(areasMap["StopAreaRef"]) {
				sp.StopAreaRefs = append(sp.StopAreaRefs, mxjutil.AsString(ref))
			}
		}
	}
	if zonesNode, ok := m["PlusbusZones"]; ok {
		if zonesMap, ok := zonesNode.(map[string]interface{}); ok {
			for _, ref := range mxjutil.AsList(zonesMap["PlusbusZoneRef"]) {
				sp.PlusbusZoneRefs = append(sp.PlusbusZoneRefs, mxjutil.AsString(ref))
			}
		}
	}

	return sp, true
}

// classify mirrors the source's stop-type match dispatch: an off-street
// BCE/BST/BCS/BCQ type found marked on-street is corrected to the
// on-street bus code BCT before classification.
func classify(sp *StopPoint, classNode map[string]interface{}) {
	stopType := sp.StopType
	switch stopType {
	case "BCE", "BST", "BCS", "BCQ":
		if sp.OnStreet {
			stopType = "BCT"
		}
	}

	switch stopType {
	case "BCT":
		sp.Category = "bus"
		onStreet, _ := mxjutil.GetMap(classNode, "OnStreet")
		bus, _ := mxjutil.GetMap(onStreet, "Bus")
		sp.SubType = mxjutil.AsString(bus["BusStopType"])
		switch sp.SubType {
		case "MKD":
			if marked, ok := mxjutil.GetMap(bus, "MarkedPoint"); ok {
				sp.Bearing = bearingOf(marked)
			}
		case "CUS":
			if unmarked, ok := mxjutil.GetMap(bus, "UnmarkedPoint"); ok {
				sp.Bearing = bearingOf(unmarked)
			}
		case "HAR":
			if _, ok := mxjutil.GetMap(bus, "HailAndRideSection"); !ok {
				if marked, ok := mxjutil.GetMap(bus, "MarkedPoint"); ok {
					sp.Bearing = bearingOf(marked)
				}
			}
		}

	case "TXR", "STR":
		sp.Category = "taxi"
		onStreet, _ := mxjutil.GetMap(classNode, "OnStreet")
		_, sp.SubType = firstChildKey(onStreet, "Taxi")

	case "SDA":
		sp.Category = "car"
		onStreet, _ := mxjutil.GetMap(classNode, "OnStreet")
		_, sp.SubType = firstChildKey(onStreet, "Car")

	case "AIR", "GAT":
		sp.Category = "air"
		offStreet, _ := mxjutil.GetMap(classNode, "OffStreet")
		_, sp.SubType = firstChildKey(offStreet, "Air")

	case "FTD", "FER", "FBT":
		sp.Category = "ferry"
		offStreet, _ := mxjutil.GetMap(classNode, "OffStreet")
		_, sp.SubType = firstChildKey(offStreet, "Ferry")

	case "RSE", "RLY", "RPL":
		sp.Category = "rail"
		offStreet, _ := mxjutil.GetMap(classNode, "OffStreet")
		_, sp.SubType = firstChildKey(offStreet, "Rail")

	case "TMU", "MET", "PLT":
		offStreet, _ := mxjutil.GetMap(classNode, "OffStreet")
		if metro, ok := mxjutil.GetMap(offStreet, "Metro"); ok {
			sp.Category = "metro"
			_, sp.SubType = firstChildKey(map[string]interface{}{"Metro": metro}, "Metro")
		} else if rail, ok := mxjutil.GetMap(offStreet, "Rail"); ok {
			sp.Category = "rail"
			_, sp.SubType = firstChildKey(map[string]interface{}{"Rail": rail}, "Rail")
		}

	case "LCE", "LCB", "LPL":
		sp.Category = "telecabine"
		offStreet, _ := mxjutil.GetMap(classNode, "OffStreet")
		_, sp.SubType = firstChildKey(offStreet, "Telecabine")

	case "BCE", "BST", "BCS", "BCQ":
		sp.Category = "busAndCoach"
		offStreet, _ := mxjutil.GetMap(classNode, "OffStreet")
		_, sp.SubType = firstChildKey(offStreet, "BusAndCoach")
	}
}

// firstChildKey finds groupKey within parent and returns the name of its
// own first child element — the source's `list(_x.keys())[0]` idiom for
// reading a single-member discriminated union.
func firstChildKey(parent map[string]interface{}, groupKey string) (found bool, key string) {
	group, ok := mxjutil.GetMap(parent, groupKey)
	if !ok {
		return false, ""
	}
	for k := range group {
		return true, lowerFirst(k)
	}
	return false, ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

func bearingOf(point map[string]interface{}) string {
	bearing, ok := mxjutil.GetMap(point, "Bearing")
	if !ok {
		return ""
	}
	return mxjutil.AsString(bearing["CompassPoint"])
}

func parseStopArea(m map[string]interface{}) (StopArea, bool) {
	code := mxjutil.AsString(m["StopAreaCode"])
	if code == "" {
		return StopArea{}, false
	}
	lon, lat, ok := resolveLocation(m)
	if !ok {
		return StopArea{}, false
	}
	area := StopArea{
		Code:         code,
		Name:         mxjutil.AsString(m["Name"]),
		AdminAreaRef: mxjutil.AsString(m["AdministrativeAreaRef"]),
		Type:         mxjutil.AsString(m["StopAreaType"]),
		Longitude:    lon,
		Latitude:     lat,
		Created:      mxjutil.AsString(m["CreationDateTime"]),
		Updated:      mxjutil.AsString(m["ModificationDateTime"]),
	}
	area.Parent = mxjutil.AsString(m["ParentStopAreaRef"])
	return area, true
}

// resolveLocation prefers a Translation longitude/latitude pair over an
// Easting/Northing pair, transforming the latter via the National Grid
// projection when it is all that is present.
func resolveLocation(m map[string]interface{}) (lon, lat float64, ok bool) {
	locNode, hasLoc := mxjutil.GetMap(m, "Location")
	if !hasLoc {
		return 0, 0, false
	}
	source := locNode
	if translation, ok := mxjutil.GetMap(locNode, "Translation"); ok {
		source = translation
	}
	lonStr := mxjutil.AsString(source["Longitude"])
	latStr := mxjutil.AsString(source["Latitude"])
	if !coords.IsMissing(lonStr) && !coords.IsMissing(latStr) {
		lonF, lonOk := mxjutil.AsFloat(source["Longitude"])
		latF, latOk := mxjutil.AsFloat(source["Latitude"])
		if lonOk && latOk {
			return lonF, latF, true
		}
	}
	easting, eastOk := mxjutil.AsFloat(locNode["Easting"])
	northing, northOk := mxjutil.AsFloat(locNode["Northing"])
	if eastOk && northOk {
		lon, lat := coords.Transform(easting, northing)
		return lon, lat, true
	}
	return 0, 0, false
}

// StopPointsGeoJSON builds a FeatureCollection of stop-point Point
// features, one per StopPoint, tagged with its classification.
func StopPointsGeoJSON(points []StopPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, sp := range points {
		f := geojson.NewPointFeature([]float64{sp.Longitude, sp.Latitude})
		f.SetProperty("atcoCode", sp.AtcoCode)
		f.SetProperty("name", sp.Name)
		f.SetProperty("category", sp.Category)
		f.SetProperty("stopType", sp.StopType)
		f.SetProperty("onStreet", sp.OnStreet)
		f.SetProperty("locality", sp.LocalityName)
		fc.AddFeature(f)
	}
	return fc
}

// StopAreasGeoJSON builds a FeatureCollection of stop-area Point
// features.
func StopAreasGeoJSON(areas []StopArea) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, area := range areas {
		f := geojson.NewPointFeature([]float64{area.Longitude, area.Latitude})
		f.SetProperty("stopAreaCode", area.Code)
		f.SetProperty("name", area.Name)
		f.SetProperty("type", area.Type)
		fc.AddFeature(f)
	}
	return fc
}
