// Package slugindex implements the Slug Index & Merger: combining the
// slug-keyed service index produced by the current run with the
// previously published remote index, so that a slug's history survives
// across runs even when this run's TNDS snapshot no longer carries it.
package slugindex

import (
	"time"

	"github.com/uktransitdata/corpus-pipeline/calendar"
	"github.com/uktransitdata/corpus-pipeline/model"
)

// Merge combines local (this run's slug index) with remote (the
// previously published index). Every local slug wins verbatim,
// regardless of what remote says about it. A slug present only in
// remote is kept, but filtered down to just the records whose
// OperatingPeriod is still active as of today; if none survive the
// filter the slug is dropped entirely.
func Merge(local, remote map[model.Slug][]model.ServiceRecord, today time.Time) map[model.Slug][]model.ServiceRecord {
	merged := make(map[model.Slug][]model.ServiceRecord, len(local)+len(remote))

	for slug, records := range local {
		merged[slug] = records
	}

	for slug, records := range remote {
		if _, ok := merged[slug]; ok {
			continue
		}
		active := activeRecords(records, today)
		if len(active) > 0 {
			merged[slug] = active
		}
	}

	return merged
}

func activeRecords(records []model.ServiceRecord, today time.Time) []model.ServiceRecord {
	var active []model.ServiceRecord
	for _, r := range records {
		if calendar.Active(r.StartDate, r.EndDate, today) {
			active = append(active, r)
		}
	}
	return active
}
