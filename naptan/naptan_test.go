package naptan

import "testing"

const fragment = `<?xml version="1.0" encoding="UTF-8"?>
<NaPTAN>
	<StopPoints>
		<StopPoint>
			<AtcoCode>3400000001</AtcoCode>
			<NaptanCode>cambdgmj</NaptanCode>
			<Descriptor>
				<CommonName>Drummer Street</CommonName>
				<Indicator>Stand A</Indicator>
			</Descriptor>
			<Place>
				<NptgLocalityRef>N0077120</NptgLocalityRef>
				<Town>Cambridge</Town>
				<Location>
					<Translation>
						<Longitude>0.121817</Longitude>
						<Latitude>52.205337</Latitude>
					</Translation>
				</Location>
			</Place>
			<StopClassification>
				<StopType>BCT</StopType>
				<OnStreet>
					<Bus>
						<BusStopType>MKD</BusStopType>
						<MarkedPoint>
							<Bearing>
								<CompassPoint>NE</CompassPoint>
							</Bearing>
						</MarkedPoint>
					</Bus>
				</OnStreet>
			</StopClassification>
			<StopAreas>
				<StopAreaRef>340G00001</StopAreaRef>
			</StopAreas>
			<AdministrativeAreaRef>340</AdministrativeAreaRef>
			<CreationDateTime>2010-01-01T00:00:00</CreationDateTime>
		</StopPoint>
		<StopPoint>
			<AtcoCode>3400000002</AtcoCode>
			<Descriptor>
				<CommonName>Cambridge Station</CommonName>
			</Descriptor>
			<Place>
				<Location>
					<Easting>545720</Easting>
					<Northing>257800</Northing>
				</Location>
			</Place>
			<StopClassification>
				<StopType>RLY</StopType>
				<OffStreet>
					<Rail>
						<AnnotatedRailRef/>
					</Rail>
				</OffStreet>
			</StopClassification>
		</StopPoint>
	</StopPoints>
	<StopAreas>
		<StopArea>
			<StopAreaCode>340G00001</StopAreaCode>
			<Name>Drummer Street Bus Station</Name>
			<StopAreaType>GBCS</StopAreaType>
			<Location>
				<Translation>
					<Longitude>0.121817</Longitude>
					<Latitude>52.205337</Latitude>
				</Translation>
			</Location>
		</StopArea>
	</StopAreas>
</NaPTAN>`

func TestParseStopPointsClassifiesOnStreetBus(t *testing.T) {
	result, err := Parse([]byte(fragment), map[string]string{"N0077120": "Cambridge"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(result.StopPoints) != 2 {
		t.Fatalf("expected 2 stop points, got %d", len(result.StopPoints))
	}
	bus := result.StopPoints[0]
	if bus.Category != "bus" || !bus.OnStreet {
		t.Errorf("expected bus/onStreet classification, got %+v", bus)
	}
	if bus.SubType != "MKD" || bus.Bearing != "NE" {
		t.Errorf("expected MKD/NE, got subType=%q bearing=%q", bus.SubType, bus.Bearing)
	}
	if bus.LocalityName != "Cambridge" {
		t.Errorf("expected resolved locality name, got %q", bus.LocalityName)
	}
	if len(bus.StopAreaRefs) != 1 || bus.StopAreaRefs[0] != "340G00001" {
		t.Errorf("unexpected StopAreaRefs: %v", bus.StopAreaRefs)
	}
}

func TestParseStopPointsClassifiesOffStreetRailAndTransformsCoordinates(t *testing.T) {
	result, err := Parse([]byte(fragment), nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	rail := result.StopPoints[1]
	if rail.Category != "rail" || rail.OnStreet {
		t.Errorf("expected rail/offStreet classification, got %+v", rail)
	}
	if rail.Longitude == 0 || rail.Latitude == 0 {
		t.Error("expected Easting/Northing to resolve to a non-zero coordinate")
	}
}

func TestParseStopAreasResolvesCoordinates(t *testing.T) {
	result, err := Parse([]byte(fragment), nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(result.StopAreas) != 1 {
		t.Fatalf("expected 1 stop area, got %d", len(result.StopAreas))
	}
	area := result.StopAreas[0]
	if area.Code != "340G00001" || area.Name != "Drummer Street Bus Station" {
		t.Errorf("unexpected stop area: %+v", area)
	}
}

func TestStopPointsGeoJSONProducesOneFeaturePerStop(t *testing.T) {
	result, err := Parse([]byte(fragment), nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	fc := StopPointsGeoJSON(result.StopPoints)
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
}

func TestParseRejectsMissingRoot(t *testing.T) {
	_, err := Parse([]byte(`<NotNaPTAN></NotNaPTAN>`), nil)
	if err == nil {
		t.Fatal("expected error for missing NaPTAN root")
	}
}
