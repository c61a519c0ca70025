package stops

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/uktransitdata/corpus-pipeline/model"
)

func TestExtractTagsStopWithEveryDocumentSlug(t *testing.T) {
	doc := &model.Document{
		StopPoints: []model.StopPoint{
			{AtcoCode: "340000001", Name: "Town Centre", LocalityRef: "N0077120"},
			{AtcoCode: "340000002", Name: "Retail Park", LocalityRef: "N0077121"},
		},
	}
	slugs := []model.Slug{"1-town-centre-retail-park", "1a-town-centre-retail-park"}

	got := Extract(doc, slugs)

	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	rec, ok := got["340000001"]
	if !ok {
		t.Fatal("expected record for 340000001")
	}
	if rec.Name != "Town Centre" || rec.LocalityRef != "N0077120" {
		t.Errorf("unexpected record fields: %+v", rec)
	}
	if len(rec.Slugs) != 2 {
		t.Errorf("expected stop tagged with both slugs, got %v", rec.Slugs)
	}
}

func TestExtractSkipsBlankAtcoCode(t *testing.T) {
	doc := &model.Document{
		StopPoints: []model.StopPoint{{AtcoCode: "", Name: "No Code"}},
	}

	got := Extract(doc, []model.Slug{"1-a-b"})

	if len(got) != 0 {
		t.Errorf("expected blank ATCO code to be skipped, got %v", got)
	}
}

func TestMergeUnionsSlugsForSharedCode(t *testing.T) {
	dst := map[string]*Record{
		"340000001": {AtcoCode: "340000001", Name: "Town Centre", Slugs: []model.Slug{"1-a-b"}},
	}
	src := map[string]*Record{
		"340000001": {AtcoCode: "340000001", Name: "Town Centre", Slugs: []model.Slug{"2-c-d"}},
		"340000002": {AtcoCode: "340000002", Name: "Retail Park", Slugs: []model.Slug{"3-e-f"}},
	}

	Merge(dst, src)

	if len(dst) != 2 {
		t.Fatalf("expected 2 records after merge, got %d", len(dst))
	}
	if len(dst["340000001"].Slugs) != 2 {
		t.Errorf("expected union of slugs, got %v", dst["340000001"].Slugs)
	}
}

func TestTndsOnlyReturnsSortedDifference(t *testing.T) {
	tnds := map[string]*Record{
		"340000003": {AtcoCode: "340000003"},
		"340000001": {AtcoCode: "340000001"},
		"340000002": {AtcoCode: "340000002"},
	}
	naptan := map[string]bool{"340000001": true}

	got := TndsOnly(tnds, naptan)

	want := []string{"340000002", "340000003"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i, code := range want {
		if got[i] != code {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestShardWritesOneFilePerAtcoCode(t *testing.T) {
	dir := t.TempDir()
	records := map[string]*Record{
		"340000001": {AtcoCode: "340000001", Name: "Town Centre", Slugs: []model.Slug{"1-a-b"}},
	}

	if err := Shard(records, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "340000001.json"))
	if err != nil {
		t.Fatalf("expected shard file to be written: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("failed to unmarshal shard: %v", err)
	}
	if rec.AtcoCode != "340000001" || rec.Name != "Town Centre" {
		t.Errorf("unexpected shard contents: %+v", rec)
	}
}

func TestAllAtcoCodesReturnsSortedList(t *testing.T) {
	records := map[string]*Record{
		"340000003": {AtcoCode: "340000003"},
		"340000001": {AtcoCode: "340000001"},
	}

	got := AllAtcoCodes(records)

	want := []string{"340000001", "340000003"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected %v, got %v", want, got)
	}
}
