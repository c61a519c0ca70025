package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uktransitdata/corpus-pipeline/config"
	"github.com/uktransitdata/corpus-pipeline/logging"
	"github.com/uktransitdata/corpus-pipeline/model"
	"github.com/uktransitdata/corpus-pipeline/stops"
	"github.com/uktransitdata/corpus-pipeline/testutil"
)

func testPipeline(t *testing.T, today time.Time) (*Pipeline, string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.DataDir = t.TempDir()
	return New(cfg, logging.NewDefaultLogger(), today), cfg.Output.DataDir
}

func writeFixture(t *testing.T, root, region, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, region)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestProcessDocumentBuildsSlugBundleAndTimetables(t *testing.T) {
	today := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	p, dataDir := testPipeline(t, today)
	regionRoot := filepath.Join(dataDir, "tnds")
	path := writeFixture(t, regionRoot, "EA", testutil.TestFileName, testutil.TransXChangeFragment)

	out, skipped, err := p.processDocument(path, regionRoot, today)
	if err != nil {
		t.Fatalf("processDocument returned error: %v", err)
	}
	if skipped {
		t.Fatal("expected document to be live, got skipped")
	}
	if out.Region != "EA" {
		t.Errorf("Region = %q, want EA", out.Region)
	}
	if len(out.SlugBundle) == 0 {
		t.Fatal("expected a non-empty slug bundle")
	}
	if len(out.Timetables) == 0 {
		t.Fatal("expected non-empty expanded timetables")
	}
	if len(out.Intermediate) == 0 {
		t.Fatal("expected non-empty intermediate route/pattern data")
	}

	var sawRecord bool
	for _, records := range out.SlugBundle {
		for _, r := range records {
			sawRecord = true
			if r.Origin != "Town Centre" || r.Destination != "Retail Park" {
				t.Errorf("unexpected record: %+v", r)
			}
			if r.Region != "EA" {
				t.Errorf("record Region = %q, want EA", r.Region)
			}
		}
	}
	if !sawRecord {
		t.Fatal("expected at least one service record in the slug bundle")
	}
}

func TestProcessDocumentSkipsExpiredDocument(t *testing.T) {
	today := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	p, dataDir := testPipeline(t, today)
	regionRoot := filepath.Join(dataDir, "tnds")
	path := writeFixture(t, regionRoot, "EA", "expired.xml", testutil.ExpiredTransXChangeFragment)

	out, skipped, err := p.processDocument(path, regionRoot, today)
	if err != nil {
		t.Fatalf("processDocument returned error: %v", err)
	}
	if !skipped {
		t.Fatal("expected expired document to be skipped")
	}
	if out != nil {
		t.Errorf("expected nil output for a skipped document, got %+v", out)
	}

	outOfDate := p.Gate().OutOfDate()
	if len(outOfDate) != 1 || outOfDate[0] != path {
		t.Errorf("expected gate to record %q as out of date, got %v", path, outOfDate)
	}
}

func TestConvertReducesAcrossDocuments(t *testing.T) {
	today := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	p, dataDir := testPipeline(t, today)
	regionRoot := filepath.Join(dataDir, "tnds")

	live := writeFixture(t, regionRoot, "EA", testutil.TestFileName, testutil.TransXChangeFragment)
	expired := writeFixture(t, regionRoot, "EA", "expired.xml", testutil.ExpiredTransXChangeFragment)

	result, err := p.Convert(context.Background(), []string{live, expired}, regionRoot, today)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("Processed = %d, want 1", result.Processed)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(result.SlugIndex) == 0 {
		t.Fatal("expected a non-empty merged slug index")
	}

	if _, err := os.Stat(filepath.Join(regionRoot, "EA", testutil.TestFileName[:len(testutil.TestFileName)-4]+".json")); err != nil {
		t.Errorf("expected slug bundle artefact to be written: %v", err)
	}
}

func TestRegionOfHandlesNestedNCSDLayout(t *testing.T) {
	root := filepath.Join("data", "tnds")
	got := regionOf(root, filepath.Join(root, "NCSD", "NCSD_TXC", "stem.xml"))
	if got != "NCSD" {
		t.Errorf("regionOf = %q, want NCSD", got)
	}

	got = regionOf(root, filepath.Join(root, "EA", "stem.xml"))
	if got != "EA" {
		t.Errorf("regionOf = %q, want EA", got)
	}
}

func TestDefaultModeFallsBackToBus(t *testing.T) {
	if defaultMode("") != "bus" {
		t.Error("expected empty mode to default to bus")
	}
	if defaultMode("coach") != "coach" {
		t.Error("expected explicit mode to be preserved")
	}
}

func TestMergeSlugIndexUnionsAcrossDocuments(t *testing.T) {
	dst := map[model.Slug][]model.ServiceRecord{
		"1-a-b": {{FileName: "doc1"}},
	}
	src := map[model.Slug][]model.ServiceRecord{
		"1-a-b": {{FileName: "doc2"}},
		"2-c-d": {{FileName: "doc3"}},
	}
	mergeSlugIndex(dst, src)

	if len(dst["1-a-b"]) != 2 {
		t.Errorf("expected 2 records for shared slug, got %d", len(dst["1-a-b"]))
	}
	if len(dst["2-c-d"]) != 1 {
		t.Errorf("expected new slug to be added, got %v", dst["2-c-d"])
	}
}

func TestExtractZipWritesOnlyXMLEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "EastAnglia.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	writeEntry(t, zw, "route1.xml", "<TransXChange/>")
	writeEntry(t, zw, "readme.txt", "not xml")
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	destDir := filepath.Join(dir, "EastAnglia")
	extracted, err := extractZip(archivePath, destDir)
	if err != nil {
		t.Fatalf("extractZip returned error: %v", err)
	}
	if len(extracted) != 1 {
		t.Fatalf("expected 1 extracted file, got %d: %v", len(extracted), extracted)
	}
	if filepath.Base(extracted[0]) != "route1.xml" {
		t.Errorf("unexpected extracted file: %v", extracted)
	}
	data, err := os.ReadFile(extracted[0])
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "<TransXChange/>" {
		t.Errorf("unexpected extracted content: %q", data)
	}
}

func writeEntry(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create zip entry %s: %v", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("write zip entry %s: %v", name, err)
	}
}

func TestReconcileStopsWritesTndsOnlyArtifact(t *testing.T) {
	today := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	p, dataDir := testPipeline(t, today)

	tnds := map[string]*stops.Record{
		"1800EA00100": {AtcoCode: "1800EA00100", Name: "Town Centre"},
		"1800EA00200": {AtcoCode: "1800EA00200", Name: "Retail Park"},
	}

	if err := p.ReconcileStops(tnds, nil); err != nil {
		t.Fatalf("ReconcileStops returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "tnds", "stops_tnds_only.json"))
	if err != nil {
		t.Fatalf("expected stops_tnds_only.json to be written: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty stops_tnds_only.json")
	}

	if _, err := os.Stat(filepath.Join(dataDir, "tnds", "stopPoints", "1800EA00100.json")); err != nil {
		t.Errorf("expected sharded stop file: %v", err)
	}
}
