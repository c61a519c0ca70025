// Package pipeline orchestrates the fetch/convert/emit/merge/stops stages
// into a single corpus-builder run. Per-document conversion is
// parallelised with a bounded worker pool sized off
// config.PipelineConfig.TNDS.ConcurrentDocuments, grounded on the
// teacher's EnhancedNetexValidatorsRunner.validateZipDataset job/result/err
// channel shape. The slug index and TNDS stop set are the only
// cross-document aggregates; both are reduced by the single collecting
// goroutine that drains the worker pool, never by shared mutable state.
package pipeline

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/go.geojson"

	"github.com/uktransitdata/corpus-pipeline/bods"
	"github.com/uktransitdata/corpus-pipeline/calendar"
	"github.com/uktransitdata/corpus-pipeline/config"
	"github.com/uktransitdata/corpus-pipeline/coords"
	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/freshness"
	"github.com/uktransitdata/corpus-pipeline/ftpmirror"
	"github.com/uktransitdata/corpus-pipeline/httpfetch"
	"github.com/uktransitdata/corpus-pipeline/logging"
	"github.com/uktransitdata/corpus-pipeline/model"
	"github.com/uktransitdata/corpus-pipeline/naptan"
	"github.com/uktransitdata/corpus-pipeline/noc"
	"github.com/uktransitdata/corpus-pipeline/nptg"
	"github.com/uktransitdata/corpus-pipeline/routes"
	"github.com/uktransitdata/corpus-pipeline/schedule"
	"github.com/uktransitdata/corpus-pipeline/slugify"
	"github.com/uktransitdata/corpus-pipeline/slugindex"
	"github.com/uktransitdata/corpus-pipeline/stops"
	"github.com/uktransitdata/corpus-pipeline/timetable"
	"github.com/uktransitdata/corpus-pipeline/txcloader"
)

// Pipeline holds the shared state one corpus-builder run needs across
// every stage: configuration, the ambient logger, the retry-fetch HTTP
// client, and the freshness gate (which accumulates its skiplist across
// every document a run touches).
type Pipeline struct {
	cfg  *config.PipelineConfig
	log  *logging.Logger
	http *httpfetch.Client
	gate *freshness.Gate
}

// New creates a Pipeline for one run, evaluating freshness against today.
// It also installs coords.Transform as txcloader's Easting/Northing
// transform.
func New(cfg *config.PipelineConfig, log *logging.Logger, today time.Time) *Pipeline {
	if log == nil {
		log = logging.NewDefaultLogger()
	}
	txcloader.SetCoordinateTransform(coords.Transform)
	return &Pipeline{
		cfg:  cfg,
		log:  log,
		http: httpfetch.New(httpfetch.DefaultOptions()),
		gate: freshness.NewGate(today),
	}
}

// Gate exposes the run's freshness gate, so a caller can persist its
// skiplist once every stage has run.
func (p *Pipeline) Gate() *freshness.Gate { return p.gate }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func persistJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Fetch stage: TNDS FTP mirror, archive extraction.
// ---------------------------------------------------------------------

// tndsRoot is the directory under which every region's extracted XML
// documents live, data/tnds in the default configuration.
func (p *Pipeline) tndsRoot() string {
	return filepath.Join(p.cfg.Output.DataDir, "tnds")
}

// Fetch mirrors newer-than-local TNDS archives over FTP and extracts
// every one into a directory named after its stem, the region directory
// every later stage keys off. It returns the sorted list of extracted
// XML document paths.
func (p *Pipeline) Fetch(ctx context.Context) ([]string, error) {
	p.log.StageStart("fetch")
	start := time.Now()

	ftpCfg := ftpmirror.Config{
		Host:          p.cfg.TNDS.FTPHost,
		User:          firstNonEmpty(p.cfg.TNDS.FTPUser, os.Getenv("TNDS_FTP_USER")),
		Password:      firstNonEmpty(p.cfg.TNDS.FTPPassword, os.Getenv("TNDS_FTP_PWD")),
		RemoteDir:     p.cfg.TNDS.RemoteDir,
		RetryAttempts: p.cfg.TNDS.RetryAttempts,
		RetryInterval: time.Duration(p.cfg.TNDS.RetryIntervalSec) * time.Second,
	}

	archiveDir := filepath.Join(p.tndsRoot(), "_archives")
	archives, err := ftpmirror.MirrorWithRetry(ftpCfg, archiveDir)
	if err != nil {
		return nil, err
	}

	var xmlFiles []string
	for _, archive := range archives {
		select {
		case <-ctx.Done():
			return xmlFiles, ctx.Err()
		default:
		}
		stem := strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
		destDir := filepath.Join(p.tndsRoot(), stem)
		extracted, err := extractZip(archive, destDir)
		if err != nil {
			return nil, err
		}
		xmlFiles = append(xmlFiles, extracted...)
	}
	sort.Strings(xmlFiles)

	p.log.StageComplete("fetch", time.Since(start), len(xmlFiles))
	return xmlFiles, nil
}

// extractZip extracts every .xml entry of the archive at archivePath
// into destDir, preserving the entry's internal path (so NCSD's nested
// NCSD_TXC directory survives), and returns the extracted file paths.
func extractZip(archivePath, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot open TNDS archive").
			WithFile(archivePath).WithCause(err)
	}
	defer func() { _ = zr.Close() }()

	var extracted []string
	for _, f := range zr.File {
		if strings.ToLower(filepath.Ext(f.Name)) != ".xml" {
			continue
		}
		destPath := filepath.Join(destDir, f.Name)
		if err := extractOne(f, destPath); err != nil {
			return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot extract archive entry").
				WithFile(f.Name).WithCause(err)
		}
		extracted = append(extracted, destPath)
	}
	return extracted, nil
}

func extractOne(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return err
	}
	out, err := os.Create(destPath) //nolint:gosec // path is derived from a configured data directory
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, rc) //nolint:gosec // TNDS archives are a trusted, bounded feed
	return err
}

// ---------------------------------------------------------------------
// Convert stage: per-document normalisation, bounded worker pool.
// ---------------------------------------------------------------------

// IntermediatePattern is one JourneyPattern's reconstructed route paired
// with its assembled (pre-expansion) timing and departure data — the
// `_<stem>.json` intermediate artefact's per-pattern entry.
type IntermediatePattern struct {
	Route   model.Route               `json:"route"`
	Pattern timetable.AssembledPattern `json:"pattern"`
}

// DocumentOutput is everything one live TNDS document contributes to a
// run: its intermediate route/pattern data, its expanded per-weekday
// timetables, its slug bundle, and the stop records it references.
type DocumentOutput struct {
	FileName     string
	Region       string
	Intermediate map[string]IntermediatePattern
	Timetables   map[string]schedule.Timetables
	SlugBundle   map[model.Slug][]model.ServiceRecord
	Stops        map[string]*stops.Record
}

// ConvertResult is the reduction of every document a Convert call
// processed: the merged slug index and the merged TNDS stop set.
type ConvertResult struct {
	SlugIndex map[model.Slug][]model.ServiceRecord
	Stops     map[string]*stops.Record
	Processed int
	Skipped   int
	Failed    int
}

// Convert normalises every TNDS document in files, writing each live
// document's artefacts under its region directory and folding its slug
// bundle and stop records into the returned aggregate. regionRoot is the
// directory files are relative to (tndsRoot in a normal run).
func (p *Pipeline) Convert(ctx context.Context, files []string, regionRoot string, today time.Time) (*ConvertResult, error) {
	p.log.StageStart("convert")
	start := time.Now()

	result := &ConvertResult{
		SlugIndex: make(map[model.Slug][]model.ServiceRecord),
		Stops:     make(map[string]*stops.Record),
	}
	if len(files) == 0 {
		p.log.StageComplete("convert", time.Since(start), 0)
		return result, nil
	}

	type job struct{ path string }
	type outcome struct {
		out     *DocumentOutput
		skipped bool
	}

	jobs := make(chan job, len(files))
	results := make(chan outcome, len(files))
	errs := make(chan error, len(files))

	workerCount := p.cfg.TNDS.ConcurrentDocuments
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(files) {
		workerCount = len(files)
	}

	for w := 0; w < workerCount; w++ {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("convert worker panic", "error", r)
					errs <- fmt.Errorf("worker panic: %v", r)
					results <- outcome{}
				}
			}()
			for j := range jobs {
				out, skipped, err := p.processDocument(j.path, regionRoot, today)
				if err != nil {
					errs <- fmt.Errorf("%s: %w", j.path, err)
					results <- outcome{}
					continue
				}
				results <- outcome{out: out, skipped: skipped}
				errs <- nil
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{path: f}:
			}
		}
	}()

	for i := 0; i < len(files); i++ {
		if e := <-errs; e != nil {
			p.log.Warn("document conversion failed", "error", e.Error())
			result.Failed++
		}
		oc := <-results
		if oc.skipped {
			result.Skipped++
			continue
		}
		if oc.out == nil {
			continue
		}
		result.Processed++
		mergeSlugIndex(result.SlugIndex, oc.out.SlugBundle)
		stops.Merge(result.Stops, oc.out.Stops)

		if err := p.writeDocumentArtifacts(regionRoot, oc.out); err != nil {
			p.log.Error("failed to write document artefacts", "file", oc.out.FileName, "error", err.Error())
		}
	}

	p.log.StageComplete("convert", time.Since(start), result.Processed)
	return result, nil
}

func mergeSlugIndex(dst, src map[model.Slug][]model.ServiceRecord) {
	for slug, records := range src {
		dst[slug] = append(dst[slug], records...)
	}
}

// processDocument loads, gates, and normalises one TNDS document. It
// returns skipped=true (with a nil output and nil error) for a document
// the freshness gate has ruled out-of-date.
func (p *Pipeline) processDocument(path, regionRoot string, today time.Time) (*DocumentOutput, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a prior directory listing, not user input
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	live, err := p.gate.Scan(path, data)
	if err != nil {
		return nil, false, err
	}
	if !live {
		p.log.DocumentSkipped(path, "no active OperatingPeriod")
		return nil, true, nil
	}

	doc, err := txcloader.Load(path, data)
	if err != nil {
		return nil, false, err
	}
	doc.BuildIndexes()

	info, err := os.Stat(path)
	lastModified := today
	if err == nil {
		lastModified = info.ModTime()
	}

	region := regionOf(regionRoot, path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	intermediate := make(map[string]IntermediatePattern)
	timetables := make(map[string]schedule.Timetables)
	slugBundle := make(map[model.Slug][]model.ServiceRecord)
	var docSlugs []model.Slug

	for i := range doc.Services {
		svc := &doc.Services[i]
		if !calendar.Active(svc.OperatingPeriod.Start, svc.OperatingPeriod.End, today) {
			continue
		}

		svcRoutes := routes.Reconstruct(doc, svc)
		assembled, vehicles := timetable.Assemble(doc, svc)

		for j := range assembled {
			ap := &assembled[j]
			var route model.Route
			if j < len(svcRoutes) {
				route = svcRoutes[j]
			}
			intermediate[ap.JourneyPatternID] = IntermediatePattern{Route: route, Pattern: *ap}

			expanded, err := schedule.Expand(*ap)
			if err != nil {
				return nil, false, err
			}
			timetables[ap.JourneyPatternID] = expanded
		}

		lineNames := lineNamesOf(svc.Lines)
		slug := slugify.Slug(lineNames, svc.Origin, svc.Destination)
		docSlugs = append(docSlugs, slug)

		record := model.ServiceRecord{
			FileName:     stem,
			Mode:         defaultMode(svc.Mode),
			Region:       region,
			LineIDs:      lineIDsOf(svc.Lines),
			LineNames:    lineNames,
			Origin:       svc.Origin,
			Destination:  svc.Destination,
			Vias:         svc.Vias,
			Description:  svc.Description,
			Operators:    operatorNames(doc, svc),
			LastModified: lastModified,
			PublicUse:    svc.PublicUse,
			StartDate:    svc.OperatingPeriod.Start,
			EndDate:      svc.OperatingPeriod.End,
			Vehicles:     vehicles,
		}
		slugBundle[slug] = append(slugBundle[slug], record)
	}

	out := &DocumentOutput{
		FileName:     stem,
		Region:       region,
		Intermediate: intermediate,
		Timetables:   timetables,
		SlugBundle:   slugBundle,
		Stops:        stops.Extract(doc, docSlugs),
	}
	return out, false, nil
}

// regionOf reports the first path segment of path relative to root —
// the region directory a document lives under (or "NCSD" for the
// doubly-nested NCSD/NCSD_TXC layout, since that is still the first
// segment).
func regionOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func defaultMode(mode string) string {
	if mode == "" {
		return "bus"
	}
	return mode
}

func lineNamesOf(lines []model.Line) []string {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.LineName)
	}
	return names
}

func lineIDsOf(lines []model.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	return ids
}

// operatorNames resolves svc.RegisteredOperatorRef against doc.Operators,
// returning the matching operator's trading or short name. A Service
// with no resolvable operator contributes an empty list, not an error —
// TransXChange documents vary in how strictly they populate this link.
func operatorNames(doc *model.Document, svc *model.Service) []string {
	if svc.RegisteredOperatorRef == "" {
		return nil
	}
	for _, op := range doc.Operators {
		if op.OperatorCode != svc.RegisteredOperatorRef && op.NationalOperatorCode != svc.RegisteredOperatorRef {
			continue
		}
		name := firstNonEmpty(op.TradingName, op.OperatorShortName, op.OperatorNameOnLicence)
		if name == "" {
			return nil
		}
		return []string{name}
	}
	return nil
}

// writeDocumentArtifacts persists out's three on-disk artefacts under
// regionRoot/<region>/: the intermediate route/pattern dump, the
// expanded timetables, and the final slug bundle.
func (p *Pipeline) writeDocumentArtifacts(regionRoot string, out *DocumentOutput) error {
	dir := filepath.Join(regionRoot, out.Region)
	if err := persistJSON(filepath.Join(dir, "_"+out.FileName+".json"), out.Intermediate); err != nil {
		return err
	}
	if err := persistJSON(filepath.Join(dir, out.FileName+".timetables.json"), out.Timetables); err != nil {
		return err
	}
	return persistJSON(filepath.Join(dir, out.FileName+".json"), out.SlugBundle)
}

// ---------------------------------------------------------------------
// External collaborators: NPTG, NaPTAN, NOC, BODS.
// ---------------------------------------------------------------------

// FetchNPTG retrieves and persists the NPTG locality gazetteer.
func (p *Pipeline) FetchNPTG(ctx context.Context) (*nptg.Result, error) {
	p.log.StageStart("nptg")
	start := time.Now()

	data, err := p.http.Get(ctx, p.cfg.NPTG.APIURL)
	if err != nil {
		return nil, err
	}
	result, err := nptg.Parse(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(p.cfg.Output.DataDir, "nptg")
	if err := persistJSON(filepath.Join(dir, "regions.json"), result.Regions); err != nil {
		return nil, err
	}
	if err := persistJSON(filepath.Join(dir, "atco_areas.json"), result.AtcoAreas); err != nil {
		return nil, err
	}
	if err := persistJSON(filepath.Join(dir, "localities.json"), result.Localities); err != nil {
		return nil, err
	}
	if err := persistJSON(filepath.Join(dir, "plusbus_zones.json"), result.PlusbusZones); err != nil {
		return nil, err
	}

	p.log.StageComplete("nptg", time.Since(start), len(result.Localities))
	return result, nil
}

// FetchNaPTAN retrieves and persists the NaPTAN stop-point and stop-area
// gazetteer, resolving each stop's locality name via localityNames (as
// produced by FetchNPTG).
func (p *Pipeline) FetchNaPTAN(ctx context.Context, localityNames map[string]string) (*naptan.Result, error) {
	p.log.StageStart("naptan")
	start := time.Now()

	data, err := p.http.Get(ctx, p.cfg.NaPTAN.APIURL)
	if err != nil {
		return nil, err
	}
	result, err := naptan.Parse(data, localityNames)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(p.cfg.Output.DataDir, "naptan")
	if err := persistJSON(filepath.Join(dir, "stop_points.json"), result.StopPoints); err != nil {
		return nil, err
	}
	if err := persistJSON(filepath.Join(dir, "stop_areas.json"), result.StopAreas); err != nil {
		return nil, err
	}
	if err := writeGeoJSON(filepath.Join(dir, "stop_points.geojson"), naptan.StopPointsGeoJSON(result.StopPoints)); err != nil {
		return nil, err
	}
	if err := writeGeoJSON(filepath.Join(dir, "stop_areas.geojson"), naptan.StopAreasGeoJSON(result.StopAreas)); err != nil {
		return nil, err
	}

	p.log.StageComplete("naptan", time.Since(start), len(result.StopPoints))
	return result, nil
}

func writeGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o600)
}

// FetchNOC retrieves, transcodes, and persists the National Operator
// Codes register.
func (p *Pipeline) FetchNOC(ctx context.Context) ([]noc.Operator, error) {
	p.log.StageStart("noc")
	start := time.Now()

	raw, err := p.http.Get(ctx, p.cfg.NOC.APIURL)
	if err != nil {
		return nil, err
	}
	utf8Data, err := noc.Transcode(raw)
	if err != nil {
		return nil, err
	}
	operators, err := noc.Parse(utf8Data)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(p.cfg.Output.DataDir, "noc", "operators.json")
	if err := persistJSON(path, operators); err != nil {
		return nil, err
	}

	p.log.StageComplete("noc", time.Since(start), len(operators))
	return operators, nil
}

// FetchBODS retrieves the current SIRI-VM vehicle-monitoring snapshot
// and merges its lineRef-to-origin/destination observations into
// existing, the mapping loaded from a previous run.
func (p *Pipeline) FetchBODS(ctx context.Context, existing bods.Mapping) (bods.Mapping, error) {
	p.log.StageStart("bods")
	start := time.Now()

	apiKey := os.Getenv(p.cfg.BODS.APIKeyEnv)
	if apiKey == "" {
		return existing, pipelineerrors.New(pipelineerrors.ConfigMissing,
			"missing "+p.cfg.BODS.APIKeyEnv+" environment variable")
	}

	url := fmt.Sprintf("%s?api_key=%s", p.cfg.BODS.APIURL, apiKey)
	data, err := p.http.Get(ctx, url)
	if err != nil {
		return existing, err
	}
	activities, err := bods.Parse(data)
	if err != nil {
		return existing, err
	}
	merged := existing.Merge(activities)

	path := filepath.Join(p.cfg.Output.DataDir, "bods", "mapping.json")
	if err := persistJSON(path, merged); err != nil {
		return merged, err
	}

	p.log.StageComplete("bods", time.Since(start), len(activities))
	return merged, nil
}

// LoadBODSMapping reads a previously persisted BODS mapping, returning
// an empty mapping (not an error) if none exists yet.
func LoadBODSMapping(dataDir string) (bods.Mapping, error) {
	path := filepath.Join(dataDir, "bods", "mapping.json")
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a configured data directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var mapping bods.Mapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return mapping, nil
}

// ---------------------------------------------------------------------
// Merge stage: slug index reconciliation against the published snapshot.
// ---------------------------------------------------------------------

// Merge combines local (this run's slug index) with the previously
// published remote snapshot, persists the result to all_slugs.json, and
// returns the merged index.
func (p *Pipeline) Merge(ctx context.Context, local map[model.Slug][]model.ServiceRecord, today time.Time) (map[model.Slug][]model.ServiceRecord, error) {
	p.log.StageStart("merge")
	start := time.Now()

	remote := make(map[model.Slug][]model.ServiceRecord)
	data, err := p.http.Get(ctx, p.cfg.TNDS.SlugSnapshotURL)
	if err != nil {
		p.log.Warn("could not fetch previous slug snapshot, merging against an empty baseline", "error", err.Error())
	} else if err := json.Unmarshal(data, &remote); err != nil {
		p.log.Warn("could not parse previous slug snapshot, merging against an empty baseline", "error", err.Error())
		remote = make(map[model.Slug][]model.ServiceRecord)
	}

	merged := slugindex.Merge(local, remote, today)

	path := filepath.Join(p.tndsRoot(), "all_slugs.json")
	if err := persistJSON(path, merged); err != nil {
		return merged, err
	}

	p.log.StageComplete("merge", time.Since(start), len(merged))
	return merged, nil
}

// ---------------------------------------------------------------------
// Stops stage: TNDS/NaPTAN reconciliation, per-ATCO sharding.
// ---------------------------------------------------------------------

// ReconcileStops diffs tnds against the NaPTAN stop-point set, shards
// tnds into one file per ATCO code, and persists the aggregate and
// TNDS-only artefacts.
func (p *Pipeline) ReconcileStops(tnds map[string]*stops.Record, naptanStops []naptan.StopPoint) error {
	p.log.StageStart("stops")
	start := time.Now()

	naptanSet := make(map[string]bool, len(naptanStops))
	for _, sp := range naptanStops {
		naptanSet[sp.AtcoCode] = true
	}

	tndsOnly := stops.TndsOnly(tnds, naptanSet)
	if err := persistJSON(filepath.Join(p.tndsRoot(), "stops_tnds_only.json"), tndsOnly); err != nil {
		return err
	}
	if err := persistJSON(filepath.Join(p.tndsRoot(), "all_stop_points.json"), stops.AllAtcoCodes(tnds)); err != nil {
		return err
	}
	if err := stops.Shard(tnds, filepath.Join(p.tndsRoot(), "stopPoints")); err != nil {
		return err
	}

	p.log.StageComplete("stops", time.Since(start), len(tnds))
	return nil
}

// ---------------------------------------------------------------------
// All: the full fetch -> convert -> collaborators -> merge -> stops run.
// ---------------------------------------------------------------------

// Run executes every stage in sequence: fetch, convert, the four
// collaborator loaders, merge, and stop reconciliation. It persists the
// freshness gate's skiplist last, once no further document will be
// scanned.
func (p *Pipeline) Run(ctx context.Context, today time.Time) error {
	files, err := p.Fetch(ctx)
	if err != nil {
		return err
	}

	convertResult, err := p.Convert(ctx, files, p.tndsRoot(), today)
	if err != nil {
		return err
	}

	nptgResult, err := p.FetchNPTG(ctx)
	if err != nil {
		return err
	}
	localityNames := make(map[string]string, len(nptgResult.Localities))
	for _, loc := range nptgResult.Localities {
		localityNames[loc.Code] = loc.Name
	}

	naptanResult, err := p.FetchNaPTAN(ctx, localityNames)
	if err != nil {
		return err
	}

	if _, err := p.FetchNOC(ctx); err != nil {
		return err
	}

	existingBODS, err := LoadBODSMapping(p.cfg.Output.DataDir)
	if err != nil {
		return err
	}
	if _, err := p.FetchBODS(ctx, existingBODS); err != nil {
		p.log.Warn("BODS collaborator failed, continuing without it", "error", err.Error())
	}

	if _, err := p.Merge(ctx, convertResult.SlugIndex, today); err != nil {
		return err
	}

	if err := p.ReconcileStops(convertResult.Stops, naptanResult.StopPoints); err != nil {
		return err
	}

	return p.gate.PersistSkiplist(filepath.Join(p.tndsRoot(), "tnds_out_of_date.json"))
}
