// Package nptg decodes the National Public Transport Gazetteer XML feed
// into the region, ATCO-area, locality and Plusbus-zone tables the
// naptan collaborator and the stop-reconciliation stage consume.
package nptg

import (
	"github.com/clbanning/mxj/v2"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/coords"
	"github.com/uktransitdata/corpus-pipeline/mxjutil"
)

// Region is a top-level NPTG administrative region.
type Region struct {
	Code string
	Name string
}

// AtcoArea is one administrative area within a Region, keyed by the ATCO
// area code every NaPTAN stop-point request is scoped to.
type AtcoArea struct {
	Code       string
	Name       string
	RegionCode string
}

// Locality is a resolved NPTG locality: a name, its administrative
// placement, an optional parent/children hierarchy, and a WGS-84
// coordinate.
type Locality struct {
	Code           string
	Name           string
	AltName        string
	AdminAreaRef   string
	NptgDistrictRef string
	SourceType     string
	Classification string
	Parent         string
	Children       []string
	Longitude      float64
	Latitude       float64
}

// PlusbusZone is a fare-zone polygon around a locality.
type PlusbusZone struct {
	Code      string
	Name      string
	Country   string
	Locations [][2]float64
}

// Result is the fully decoded and cross-referenced gazetteer.
type Result struct {
	Regions      []Region
	AtcoAreas    []AtcoArea
	Localities   []Locality
	PlusbusZones []PlusbusZone
}

// Parse decodes raw NPTG XML into a Result, resolving locality parent/
// child links and coordinate transforms along the way.
func Parse(data []byte) (*Result, error) {
	root, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot decode NPTG XML").WithCause(err)
	}

	gazetteer, ok := mxjutil.GetMap(map[string]interface{}(root), "NationalPublicTransportGazetteer")
	if !ok {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "missing NationalPublicTransportGazetteer root element")
	}

	result := &Result{}

	if regionsNode, ok := mxjutil.GetMap(gazetteer, "Regions"); ok {
		for _, rNode := range mxjutil.AsList(regionsNode["Region"]) {
			rMap, ok := rNode.(map[string]interface{})
			if !ok {
				continue
			}
			region := Region{
				Code: mxjutil.AsString(rMap["RegionCode"]),
				Name: mxjutil.AsString(rMap["Name"]),
			}
			result.Regions = append(result.Regions, region)

			if areasNode, ok := mxjutil.GetMap(rMap, "AdministrativeAreas"); ok {
				for _, aNode := range mxjutil.AsList(areasNode["AdministrativeArea"]) {
					aMap, ok := aNode.(map[string]interface{})
					if !ok {
						continue
					}
					result.AtcoAreas = append(result.AtcoAreas, AtcoArea{
						Code:       mxjutil.AsString(aMap["AtcoAreaCode"]),
						Name:       mxjutil.AsString(aMap["Name"]),
						RegionCode: region.Code,
					})
				}
			}
		}
	}

	byCode := make(map[string]*Locality)
	if localitiesNode, ok := mxjutil.GetMap(gazetteer, "NptgLocalities"); ok {
		for _, lNode := range mxjutil.AsList(localitiesNode["NptgLocality"]) {
			lMap, ok := lNode.(map[string]interface{})
			if !ok {
				continue
			}
			loc, ok := parseLocality(lMap)
			if !ok {
				continue
			}
			result.Localities = append(result.Localities, loc)
			byCode[loc.Code] = &result.Localities[len(result.Localities)-1]
		}
	}
	for i := range result.Localities {
		loc := &result.Localities[i]
		if loc.Parent == "" {
			continue
		}
		if parent, ok := byCode[loc.Parent]; ok {
			parent.Children = append(parent.Children, loc.Code)
		}
	}

	if zonesNode, ok := mxjutil.GetMap(gazetteer, "PlusbusZones"); ok {
		for _, zNode := range mxjutil.AsList(zonesNode["PlusbusZone"]) {
			zMap, ok := zNode.(map[string]interface{})
			if !ok {
				continue
			}
			if zone, ok := parsePlusbusZone(zMap); ok {
				result.PlusbusZones = append(result.PlusbusZones, zone)
			}
		}
	}

	return result, nil
}

func parseLocality(m map[string]interface{}) (Locality, bool) {
	code := mxjutil.AsString(m["NptgLocalityCode"])
	if code == "" {
		return Locality{}, false
	}

	lon, lat, ok := resolveLocation(m)
	if !ok {
		return Locality{}, false
	}

	loc := Locality{
		Code:           code,
		AdminAreaRef:   mxjutil.AsString(m["AdministrativeAreaRef"]),
		NptgDistrictRef: mxjutil.AsString(m["NptgDistrictRef"]),
		SourceType:     mxjutil.AsString(m["SourceLocalityType"]),
		Classification: mxjutil.AsString(m["LocalityClassification"]),
		Longitude:      lon,
		Latitude:       lat,
	}

	if desc, ok := mxjutil.GetMap(m, "Descriptor"); ok {
		loc.Name = mxjutil.AsString(desc["LocalityName"])
		if qualify, ok := mxjutil.GetMap(desc, "Qualify"); ok {
			if qualifier := mxjutil.AsString(qualify["QualifierName"]); qualifier != "" {
				loc.Name = loc.Name + ", " + qualifier
			}
		}
	}
	if altNode, ok := mxjutil.GetMap(m, "AlternativeDescriptors"); ok {
		if desc, ok := mxjutil.GetMap(altNode, "Descriptor"); ok {
			loc.AltName = mxjutil.AsString(desc["LocalityName"])
		}
	}
	if parentNode, ok := m["ParentNptgLocalityRef"]; ok {
		loc.Parent = mxjutil.AsString(parentNode)
	}

	return loc, true
}

// resolveLocation prefers an explicit Translation longitude/latitude
// over an Easting/Northing pair, falling through to the National Grid
// transform when only the latter is present — mirroring the source's
// "Translation unless it's the zero sentinel" rule.
func resolveLocation(m map[string]interface{}) (lon, lat float64, ok bool) {
	locNode, ok := mxjutil.GetMap(m, "Location")
	if !ok {
		return 0, 0, false
	}
	if translation, ok := mxjutil.GetMap(locNode, "Translation"); ok {
		lonStr := mxjutil.AsString(translation["Longitude"])
		latStr := mxjutil.AsString(translation["Latitude"])
		if !coords.IsMissing(lonStr) && !coords.IsMissing(latStr) {
			lonF, lonOk := mxjutil.AsFloat(translation["Longitude"])
			latF, latOk := mxjutil.AsFloat(translation["Latitude"])
			if lonOk && latOk {
				return lonF, latF, true
			}
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

func parsePlusbusZone(m map[string]interface{}) (PlusbusZone, bool) {
	code := mxjutil.AsString(m["PlusbusZoneCode"])
	if code == "" {
		return PlusbusZone{}, false
	}
	zone := PlusbusZone{
		Code:    code,
		Name:    mxjutil.AsString(m["Name"]),
		Country: mxjutil.AsString(m["Country"]),
	}
	if mapping, ok := mxjutil.GetMap(m, "Mapping"); ok {
		for _, locNode := range mxjutil.AsList(mapping["Location"]) {
			locMap, ok := locNode.(map[string]interface{})
			if !ok {
				continue
			}
			easting, eastOk := mxjutil.AsFloat(locMap["Easting"])
			northing, northOk := mxjutil.AsFloat(locMap["Northing"])
			if !eastOk || !northOk {
				continue
			}
			lon, lat := coords.Transform(easting, northing)
			zone.Locations = append(zone.Locations, [2]float64{lon, lat})
		}
	}
	return zone, true
}
