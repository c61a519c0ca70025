// Package freshness implements the Freshness Gate: a cheap pre-probe of
// a TransXChange document's OperatingPeriod dates, run against a raw
// xmlquery tree rather than the full mxj decode, so that a stale
// document never pays the cost of the expensive normalisation pass.
package freshness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/uktransitdata/corpus-pipeline/calendar"
	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
)

// Gate scans TransXChange documents for at least one active
// OperatingPeriod and records the ones that have none.
type Gate struct {
	today     time.Time
	mu        sync.Mutex
	outOfDate map[string]bool
}

// NewGate creates a Gate evaluating activity against today.
func NewGate(today time.Time) *Gate {
	return &Gate{today: today, outOfDate: make(map[string]bool)}
}

// Scan parses the raw XML bytes and reports whether the document has at
// least one Service whose OperatingPeriod is active today. A document
// with no Service/OperatingPeriod elements at all is treated as live —
// the gate only skiplists documents it positively knows are expired.
func (g *Gate) Scan(fileName string, data []byte) (bool, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return false, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot parse XML for freshness probe").
			WithFile(fileName).WithCause(err)
	}

	periods := xmlquery.Find(doc, "//Service/OperatingPeriod")
	if len(periods) == 0 {
		return true, nil
	}

	live := false
	for _, node := range periods {
		start := findChildText(node, "StartDate")
		end := findChildText(node, "EndDate")
		startTime, startOK := parseDate(start)
		endTime, endOK := parseDate(end)

		var startPtr, endPtr *time.Time
		if startOK {
			startPtr = &startTime
		}
		if endOK {
			endPtr = &endTime
		}

		if calendar.Active(startPtr, endPtr, g.today) {
			live = true
			break
		}
	}

	if !live {
		g.mu.Lock()
		g.outOfDate[fileName] = true
		g.mu.Unlock()
	}
	return live, nil
}

func findChildText(node *xmlquery.Node, tag string) string {
	child := xmlquery.FindOne(node, tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// OutOfDate returns the sorted list of file names the gate has marked
// expired so far.
func (g *Gate) OutOfDate() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.outOfDate))
	for name := range g.outOfDate {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PersistSkiplist writes the gate's current out-of-date file list to
// path as sorted JSON, the tnds_out_of_date.json artefact.
func (g *Gate) PersistSkiplist(path string) error {
	names := g.OutOfDate()
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal skiplist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create skiplist directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write skiplist: %w", err)
	}
	return nil
}
