// Package importer sequences the guided bulk-import workflow: an ordered set
// of steps (products → deliveries → inventory, machines independent), each
// holding its own parsed rows, column mapping and coerced batch, gated on the
// completion of its prerequisites.
//
// The upload action for a step runs the full pipeline in order — validate,
// dependency preflight, single all-or-nothing insert — and stops at the first
// failure without touching the store. All state lives in memory for the
// current session; the data store is the system of record.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetseed/internal/coerce"
	"fleetseed/internal/dedup"
	"fleetseed/internal/depcheck"
	"fleetseed/internal/mapping"
	"fleetseed/internal/metrics"
	"fleetseed/internal/parser"
	csvparser "fleetseed/internal/parser/csv"
	jsonparser "fleetseed/internal/parser/json"
	"fleetseed/internal/schema"
	"fleetseed/internal/store"
	"fleetseed/internal/validate"
	"fleetseed/pkg/records"
)

// ErrBusy is returned when an upload is re-triggered while a previous insert
// for the same step is still in flight.
var ErrBusy = errors.New("upload already in progress for this step")

// ErrStepLocked is returned when a step's prerequisites are not completed.
var ErrStepLocked = errors.New("step locked: prerequisite step not completed")

// DependencyError blocks an upload whose batch references keys the store does
// not have. It carries the full per-table missing-key report.
type DependencyError struct {
	Report *depcheck.Report
}

func (e *DependencyError) Error() string {
	return "missing referenced keys: " + e.Report.String()
}

// prereqs lists the steps that must be completed before a table unlocks.
// Products and machines have none.
var prereqs = map[schema.Table][]schema.Table{
	schema.Deliveries: {schema.Products},
	schema.Inventory:  {schema.Products},
}

// Step holds the per-table workflow state. A fresh Step is created on file
// selection; reset-all discards everything.
type Step struct {
	Table     schema.Table
	FileName  string
	Rows      []records.Record
	Headers   []string
	Warnings  []string
	Mapping   mapping.Mapping
	Coerced   []coerce.Row
	Completed bool
	Inserted  int64
}

// UploadResult summarizes a successful upload action.
type UploadResult struct {
	Inserted   int64
	Duplicates int // intra-batch duplicates dropped before insert
}

// Orchestrator drives the stepper workflow against one store.
type Orchestrator struct {
	st  store.Store
	log *zap.Logger

	mu            sync.Mutex
	session       uuid.UUID
	steps         map[schema.Table]*Step
	busy          map[schema.Table]bool
	ignoreBatchID bool
}

// New creates an orchestrator with a fresh session. At initialization only
// products (and the independent machines step) are enabled. The ignore-batch
// escape hatch starts on, matching the store's trigger-provisioned default.
func New(st store.Store, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		st:            st,
		log:           log,
		session:       uuid.New(),
		steps:         make(map[schema.Table]*Step, len(schema.Tables)),
		busy:          make(map[schema.Table]bool),
		ignoreBatchID: true,
	}
	for _, t := range schema.Tables {
		o.steps[t] = &Step{Table: t}
	}
	return o
}

// Session returns the workflow session identifier.
func (o *Orchestrator) Session() uuid.UUID { return o.session }

// Enabled reports whether the step may be interacted with: all of its
// prerequisite steps are completed.
func (o *Orchestrator) Enabled(t schema.Table) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabledLocked(t)
}

func (o *Orchestrator) enabledLocked(t schema.Table) bool {
	for _, p := range prereqs[t] {
		if !o.steps[p].Completed {
			return false
		}
	}
	return true
}

// Status returns a snapshot of the step state for display. The snapshot owns
// its Mapping copy; callers encode and render it outside the lock while
// SetMapping keeps mutating the live map.
func (o *Orchestrator) Status() []Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Step, 0, len(schema.Tables))
	for _, t := range schema.Tables {
		st := *o.steps[t]
		if st.Mapping != nil {
			m := make(mapping.Mapping, len(st.Mapping))
			for k, v := range st.Mapping {
				m[k] = v
			}
			st.Mapping = m
		}
		out = append(out, st)
	}
	return out
}

// SetIgnoreBatchID flips the inventory escape hatch. When on, batch_id is
// dropped from the payload and no deliveries existence check runs; the store
// provisions the linkage server-side.
func (o *Orchestrator) SetIgnoreBatchID(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ignoreBatchID = on
}

// IgnoreBatchID reports the current escape-hatch setting.
func (o *Orchestrator) IgnoreBatchID() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ignoreBatchID
}

// LoadFile parses an uploaded file for the step, replacing any previously
// loaded data, and builds the auto-suggested column mapping. The extension
// picks the format; unsupported extensions are rejected before parsing.
// A locked step refuses the file.
func (o *Orchestrator) LoadFile(t schema.Table, name string, r io.Reader, delimiter rune) error {
	if !schema.Valid(t) {
		return fmt.Errorf("unknown table %q", t)
	}
	if !o.Enabled(t) {
		return fmt.Errorf("%s: %w", t, ErrStepLocked)
	}

	var p parser.Parser
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		if delimiter != 0 && !parser.ValidDelimiter(delimiter) {
			return fmt.Errorf("delimiter %q not supported", delimiter)
		}
		p = csvparser.New(csvparser.Options{Delimiter: delimiter})
	case ".json":
		p = jsonparser.New()
	default:
		return fmt.Errorf("%q: %w", name, parser.ErrUnsupported)
	}

	res, err := p.Parse(r)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.steps[t]
	st.FileName = name
	st.Rows = res.Rows
	st.Headers = res.Headers
	st.Warnings = res.Warnings
	st.Mapping = mapping.AutoMap(t, res.Headers)
	st.Coerced = coerce.Rows(st.Mapping.Apply(t, st.Rows))

	metrics.RecordRows(string(t), "parsed", int64(len(res.Rows)))
	metrics.RecordRows(string(t), "parse_skipped", int64(len(res.Warnings)))
	o.log.Info("file loaded",
		zap.String("table", string(t)),
		zap.String("file", name),
		zap.Int("rows", len(res.Rows)),
		zap.Int("warnings", len(res.Warnings)))
	return nil
}

// SetMapping overrides the source header for one target column of the step
// (empty source means "ignored") and rebuilds the coerced batch.
func (o *Orchestrator) SetMapping(t schema.Table, column, source string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.steps[t]
	if st.Mapping == nil {
		return fmt.Errorf("%s: %w", t, parser.ErrNoFile)
	}
	found := false
	for _, col := range mapping.Surface(t) {
		if col == column {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("column %q is not mappable for %s", column, t)
	}
	st.Mapping.Set(column, source)
	st.Coerced = coerce.Rows(st.Mapping.Apply(t, st.Rows))
	return nil
}

// Preview returns up to n coerced rows of the step for operator confirmation.
func (o *Orchestrator) Preview(t schema.Table, n int) []coerce.Row {
	o.mu.Lock()
	defer o.mu.Unlock()
	rows := o.steps[t].Coerced
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}
	out := make([]coerce.Row, n)
	copy(out, rows[:n])
	return out
}

// Upload runs the gated upload action for the step:
//
//  1. Required-field validation; a violation aborts with no network call.
//  2. Dependency preflight for deliveries/inventory; a blocking miss aborts
//     with the full report before any insert.
//  3. One all-or-nothing insert of the whole batch.
//
// On success the step is marked completed, which unlocks its dependents. On
// failure the step stays incomplete and the action may simply be re-run.
func (o *Orchestrator) Upload(ctx context.Context, t schema.Table) (UploadResult, error) {
	started := time.Now()
	res, err := o.upload(ctx, t)
	if err == nil || !errors.Is(err, ErrBusy) {
		metrics.RecordUpload(string(t), err, time.Since(started))
	}
	return res, err
}

func (o *Orchestrator) upload(ctx context.Context, t schema.Table) (UploadResult, error) {
	o.mu.Lock()
	if !o.enabledLocked(t) {
		o.mu.Unlock()
		return UploadResult{}, fmt.Errorf("%s: %w", t, ErrStepLocked)
	}
	if o.busy[t] {
		o.mu.Unlock()
		return UploadResult{}, fmt.Errorf("%s: %w", t, ErrBusy)
	}
	st := o.steps[t]
	if st.FileName == "" {
		o.mu.Unlock()
		return UploadResult{}, fmt.Errorf("%s: %w", t, parser.ErrNoFile)
	}

	payload := o.payloadLocked(t)
	ignoreBatch := o.ignoreBatchID
	o.busy[t] = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy[t] = false
		o.mu.Unlock()
	}()

	payload, dropped := dedup.Rows(t, payload)
	metrics.RecordRows(string(t), "dedup_dropped", int64(dropped))

	if v := validate.Batch(t, payload); v != nil {
		o.log.Warn("validation failed", zap.String("table", string(t)), zap.String("reason", v.Reason), zap.Int("row", v.Row+1))
		return UploadResult{}, v
	}

	if t == schema.Deliveries || t == schema.Inventory {
		report, err := depcheck.Check(ctx, o.st, t, payload, depcheck.Options{IgnoreBatchID: ignoreBatch})
		if err != nil {
			o.log.Error("dependency preflight failed", zap.String("table", string(t)), zap.Error(err))
			return UploadResult{}, err
		}
		if !report.Empty() {
			o.log.Warn("dependency preflight blocked upload",
				zap.String("table", string(t)),
				zap.String("missing", report.String()))
			return UploadResult{}, &DependencyError{Report: report}
		}
	}

	columns := payloadColumns(t, payload)
	inserted, err := o.st.Insert(ctx, t, columns, payload)
	if err != nil {
		// Surface the store's code and message verbatim; nothing was
		// written, so there is nothing to roll back.
		o.log.Error("insert failed", zap.String("table", string(t)), zap.Error(err))
		return UploadResult{}, err
	}

	o.mu.Lock()
	st.Completed = true
	st.Inserted = inserted
	o.mu.Unlock()

	metrics.RecordRows(string(t), "inserted", inserted)
	o.log.Info("step completed",
		zap.String("table", string(t)),
		zap.Int64("inserted", inserted),
		zap.Int("duplicates_dropped", dropped))
	return UploadResult{Inserted: inserted, Duplicates: dropped}, nil
}

// payloadLocked copies the step's coerced rows, applying the batch_id escape
// hatch for inventory. The copy keeps later mapping edits from mutating an
// in-flight batch.
func (o *Orchestrator) payloadLocked(t schema.Table) []coerce.Row {
	src := o.steps[t].Coerced
	out := make([]coerce.Row, len(src))
	for i, row := range src {
		cp := make(coerce.Row, len(row))
		for k, v := range row {
			if t == schema.Inventory && o.ignoreBatchID && k == "batch_id" {
				continue
			}
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// payloadColumns returns the columns present in at least one payload row, in
// mapping-surface order, so the insert's column list is stable.
func payloadColumns(t schema.Table, rows []coerce.Row) []string {
	var out []string
	for _, col := range mapping.Surface(t) {
		for _, row := range rows {
			if _, ok := row[col]; ok {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// ResetAll clears every step back to its initial state: products enabled,
// everything else pending, all parsed and coerced data discarded. A new
// session identifier is issued.
func (o *Orchestrator) ResetAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range schema.Tables {
		o.steps[t] = &Step{Table: t}
	}
	o.session = uuid.New()
	o.log.Info("workflow reset", zap.String("session", o.session.String()))
}

// SampleFetch reads the most recent rows of the table, ordered by its
// recency column, purely for operator verification. Failures are reported to
// the caller but never affect step state.
func (o *Orchestrator) SampleFetch(ctx context.Context, t schema.Table, limit int) ([]records.Record, error) {
	if !schema.Valid(t) {
		return nil, fmt.Errorf("unknown table %q", t)
	}
	if limit <= 0 {
		limit = 5
	}
	hint := schema.RecencyHint(t)
	return o.st.SelectRecent(ctx, t, store.SelectOptions{
		OrderBy:    hint.Column,
		Descending: !hint.Ascending,
		Limit:      limit,
	})
}
