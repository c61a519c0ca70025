package freshness

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/uktransitdata/corpus-pipeline/testutil"
)

func TestScanLiveDocument(t *testing.T) {
	gate := NewGate(testutil.MustParseDate(t, "2023-06-01"))
	live, err := gate.Scan(testutil.TestFileName, []byte(testutil.TransXChangeFragment))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if !live {
		t.Error("expected document to be live")
	}
	if len(gate.OutOfDate()) != 0 {
		t.Errorf("expected no out-of-date entries, got %v", gate.OutOfDate())
	}
}

func TestScanExpiredDocument(t *testing.T) {
	gate := NewGate(testutil.MustParseDate(t, "2023-06-01"))
	live, err := gate.Scan("expired.xml", []byte(testutil.ExpiredTransXChangeFragment))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if live {
		t.Error("expected document to be expired")
	}
	out := gate.OutOfDate()
	if len(out) != 1 || out[0] != "expired.xml" {
		t.Errorf("OutOfDate() = %v, want [expired.xml]", out)
	}
}

func TestScanDocumentWithNoOperatingPeriodIsLive(t *testing.T) {
	gate := NewGate(testutil.MustParseDate(t, "2023-06-01"))
	live, err := gate.Scan("bare.xml", []byte(`<TransXChange><Services><Service><ServiceCode>X</ServiceCode></Service></Services></TransXChange>`))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if !live {
		t.Error("expected document with no OperatingPeriod to default to live")
	}
}

func TestPersistSkiplistWritesSortedJSON(t *testing.T) {
	gate := NewGate(testutil.MustParseDate(t, "2023-06-01"))
	if _, err := gate.Scan("b_expired.xml", []byte(testutil.ExpiredTransXChangeFragment)); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if _, err := gate.Scan("a_expired.xml", []byte(testutil.ExpiredTransXChangeFragment)); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tnds_out_of_date.json")
	if err := gate.PersistSkiplist(path); err != nil {
		t.Fatalf("PersistSkiplist returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read skiplist: %v", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		t.Fatalf("failed to unmarshal skiplist: %v", err)
	}
	if len(names) != 2 || names[0] != "a_expired.xml" || names[1] != "b_expired.xml" {
		t.Errorf("unexpected skiplist contents: %v", names)
	}
}
