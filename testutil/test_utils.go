package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConstants commonly used in tests.
const (
	TestRegionCode        = "EA"
	TestFileName          = "ea_20230101.xml"
	TestProcessingTimeout = 30 * time.Second
)

// TransXChangeFragment is a minimal valid TransXChange document with one
// Service, one JourneyPattern and one VehicleJourney, used across package
// tests as a shared fixture.
const TransXChangeFragment = `<?xml version="1.0" encoding="UTF-8"?>
<TransXChange>
	<Services>
		<Service>
			<ServiceCode>EA001</ServiceCode>
			<Lines>
				<Line id="EA001:1">
					<LineName>1</LineName>
				</Line>
			</Lines>
			<OperatingPeriod>
				<StartDate>2023-01-01</StartDate>
				<EndDate>2023-12-31</EndDate>
			</OperatingPeriod>
			<StandardService>
				<Origin>Town Centre</Origin>
				<Destination>Retail Park</Destination>
				<Vias>
					<Via>High Street</Via>
				</Vias>
				<JourneyPattern id="JP1">
					<RouteRef>R1</RouteRef>
					<JourneyPatternSectionRefs>JPS1</JourneyPatternSectionRefs>
				</JourneyPattern>
			</StandardService>
		</Service>
	</Services>
	<Routes>
		<Route id="R1">
			<Description>Town Centre to Retail Park</Description>
			<RouteSectionRef>RS1</RouteSectionRef>
		</Route>
	</Routes>
	<RouteSections>
		<RouteSection id="RS1">
			<RouteLink id="RL1">
				<From>
					<StopPointRef>1800EA00100</StopPointRef>
				</From>
				<To>
					<StopPointRef>1800EA00200</StopPointRef>
				</To>
				<Distance>950</Distance>
				<Direction>outbound</Direction>
				<Track>
					<Mapping>
						<Location>
							<Translation>
								<Longitude>-0.127758</Longitude>
								<Latitude>51.507351</Latitude>
							</Translation>
						</Location>
					</Mapping>
				</Track>
			</RouteLink>
		</RouteSection>
	</RouteSections>
	<JourneyPatternSections>
		<JourneyPatternSection id="JPS1">
			<JourneyPatternTimingLink id="JPTL1">
				<From>
					<StopPointRef>1800EA00100</StopPointRef>
				</From>
				<To>
					<StopPointRef>1800EA00200</StopPointRef>
				</To>
				<RunTime>PT5M</RunTime>
			</JourneyPatternTimingLink>
		</JourneyPatternSection>
	</JourneyPatternSections>
	<VehicleJourneys>
		<VehicleJourney>
			<VehicleJourneyCode>VJ1</VehicleJourneyCode>
			<JourneyPatternRef>JP1</JourneyPatternRef>
			<DepartureTime>08:00:00</DepartureTime>
			<Operational>
				<VehicleType>
					<VehicleTypeCode>DD</VehicleTypeCode>
					<Description>Double Decker</Description>
				</VehicleType>
			</Operational>
			<VehicleJourneyTimingLink>
				<JourneyPatternTimingLinkRef>JPTL1</JourneyPatternTimingLinkRef>
				<From>
					<Activity>pickUp</Activity>
					<WaitTime>PT1M</WaitTime>
				</From>
				<To>
					<Activity>setDown</Activity>
					<WaitTime>PT2M</WaitTime>
				</To>
			</VehicleJourneyTimingLink>
		</VehicleJourney>
	</VehicleJourneys>
	<StopPoints>
		<StopPoint>
			<AtcoCode>1800EA00100</AtcoCode>
			<Descriptor>
				<CommonName>Town Centre</CommonName>
			</Descriptor>
			<Place>
				<NptgLocalityRef>N0077120</NptgLocalityRef>
			</Place>
		</StopPoint>
		<StopPoint>
			<AtcoCode>1800EA00200</AtcoCode>
			<Descriptor>
				<CommonName>Retail Park</CommonName>
			</Descriptor>
			<Place>
				<NptgLocalityRef>N0077121</NptgLocalityRef>
			</Place>
		</StopPoint>
	</StopPoints>
</TransXChange>`

// AnnotatedStopPointRefFragment exercises the lighter StopPoints shape
// used by some TXC profiles in place of the full StopPoint element.
const AnnotatedStopPointRefFragment = `<?xml version="1.0" encoding="UTF-8"?>
<TransXChange>
	<StopPoints>
		<AnnotatedStopPointRef>
			<StopPointRef>1800EA00100</StopPointRef>
			<CommonName>Town Centre</CommonName>
		</AnnotatedStopPointRef>
		<AnnotatedStopPointRef>
			<StopPointRef>1800EA00200</StopPointRef>
			<CommonName>Retail Park</CommonName>
		</AnnotatedStopPointRef>
	</StopPoints>
</TransXChange>`

// ExpiredTransXChangeFragment is the same shape but with an OperatingPeriod
// wholly in the past, for freshness-gate tests.
const ExpiredTransXChangeFragment = `<?xml version="1.0" encoding="UTF-8"?>
<TransXChange>
	<Services>
		<Service>
			<ServiceCode>EA002</ServiceCode>
			<OperatingPeriod>
				<StartDate>2010-01-01</StartDate>
				<EndDate>2010-12-31</EndDate>
			</OperatingPeriod>
		</Service>
	</Services>
</TransXChange>`

// DataManager handles temporary test files and fixtures.
type DataManager struct {
	tempDir string
}

// NewDataManager creates a new test data manager backed by a temp directory
// that is removed automatically when the test completes.
func NewDataManager(t *testing.T) *DataManager {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "corpus-pipeline-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(tempDir); err != nil {
			t.Logf("failed to remove temp dir %s: %v", tempDir, err)
		}
	})

	return &DataManager{tempDir: tempDir}
}

// CreateXMLFile writes a temporary XML file with the given content.
func (dm *DataManager) CreateXMLFile(t *testing.T, filename, content string) string {
	t.Helper()
	filePath := filepath.Join(dm.tempDir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to create test file %s: %v", filename, err)
	}
	return filePath
}

// CreateZipFile writes a temporary ZIP file containing the given XML
// members, for FTP-mirror and extraction tests.
func (dm *DataManager) CreateZipFile(t *testing.T, zipName string, xmlFiles map[string]string) string {
	t.Helper()

	if filepath.Base(zipName) != zipName {
		t.Fatalf("invalid zip name: %s", zipName)
	}

	zipPath := filepath.Join(dm.tempDir, zipName)
	absTemp, _ := filepath.Abs(dm.tempDir)
	absZip, _ := filepath.Abs(zipPath)
	if rel, err := filepath.Rel(absTemp, absZip); err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("zip path escapes temp directory: %s", zipPath)
	}

	zipFile, err := os.Create(zipPath) //nolint:gosec // path validated above
	if err != nil {
		t.Fatalf("failed to create zip file %s: %v", zipName, err)
	}
	defer func() { _ = zipFile.Close() }()

	zipWriter := zip.NewWriter(zipFile)
	defer func() { _ = zipWriter.Close() }()

	for filename, content := range xmlFiles {
		w, err := zipWriter.Create(filename)
		if err != nil {
			t.Fatalf("failed to create entry %s in zip: %v", filename, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %s in zip: %v", filename, err)
		}
	}

	return zipPath
}

// TempDir returns the manager's backing temporary directory.
func (dm *DataManager) TempDir() string {
	return dm.tempDir
}

// CreateSubDir creates and returns a named subdirectory of the temp dir.
func (dm *DataManager) CreateSubDir(t *testing.T, name string) string {
	t.Helper()
	if filepath.Base(name) != name {
		t.Fatalf("invalid subdirectory name: %s", name)
	}
	dirPath := filepath.Join(dm.tempDir, name)
	if err := os.MkdirAll(dirPath, 0o750); err != nil {
		t.Fatalf("failed to create subdirectory %s: %v", name, err)
	}
	return dirPath
}

// MustParseDate parses an RFC3339 date or fails the test.
func MustParseDate(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", value, err)
	}
	return ts
}
