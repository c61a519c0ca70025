// Package stops implements Stop Extraction & Reconciliation: unioning
// every ATCO code a TNDS document references (in either the StopPoint
// or AnnotatedStopPointRef shape) against every slug that references it,
// diffing the result against NaPTAN's published stop set, and sharding
// the merged records into one file per ATCO code.
package stops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/uktransitdata/corpus-pipeline/model"
)

// Record is the accumulated state for one ATCO code: its name/locality
// as last seen, and every slug that references it.
type Record struct {
	AtcoCode    string       `json:"atcoCode"`
	Name        string       `json:"name"`
	LocalityRef string       `json:"localityRef"`
	Slugs       []model.Slug `json:"slugs"`
}

// Extract walks doc's StopPoints and returns one Record per ATCO code,
// each tagged with every slug passed in docSlugs — every Service in a
// document shares its single StopPoints block, so a stop is tagged with
// the slugs of every Service the document carries, not just one.
func Extract(doc *model.Document, docSlugs []model.Slug) map[string]*Record {
	records := make(map[string]*Record, len(doc.StopPoints))
	for _, sp := range doc.StopPoints {
		if sp.AtcoCode == "" {
			continue
		}
		rec, ok := records[sp.AtcoCode]
		if !ok {
			rec = &Record{AtcoCode: sp.AtcoCode, Name: sp.Name, LocalityRef: sp.LocalityRef}
			records[sp.AtcoCode] = rec
		}
		for _, slug := range docSlugs {
			if !containsSlug(rec.Slugs, slug) {
				rec.Slugs = append(rec.Slugs, slug)
			}
		}
	}
	return records
}

func containsSlug(list []model.Slug, s model.Slug) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Merge folds src's records into dst, unioning slugs for any ATCO code
// both carry and preferring the first-seen name/locality.
func Merge(dst map[string]*Record, src map[string]*Record) {
	for atco, rec := range src {
		existing, ok := dst[atco]
		if !ok {
			dst[atco] = rec
			continue
		}
		for _, slug := range rec.Slugs {
			if !containsSlug(existing.Slugs, slug) {
				existing.Slugs = append(existing.Slugs, slug)
			}
		}
	}
}

// TndsOnly returns the sorted list of ATCO codes present in tnds but
// absent from naptan.
func TndsOnly(tnds map[string]*Record, naptan map[string]bool) []string {
	var onlyTnds []string
	for atco := range tnds {
		if !naptan[atco] {
			onlyTnds = append(onlyTnds, atco)
		}
	}
	sort.Strings(onlyTnds)
	return onlyTnds
}

// Shard writes one JSON file per ATCO code into dir, named <atcoCode>.json.
func Shard(records map[string]*Record, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create stop shard directory: %w", err)
	}
	for atco, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal stop record %s: %w", atco, err)
		}
		path := filepath.Join(dir, atco+".json")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write stop shard %s: %w", path, err)
		}
	}
	return nil
}

// AllAtcoCodes returns the sorted list of ATCO codes in records, the
// all_stop_points.json artefact's contents.
func AllAtcoCodes(records map[string]*Record) []string {
	codes := make([]string, 0, len(records))
	for atco := range records {
		codes = append(codes, atco)
	}
	sort.Strings(codes)
	return codes
}
