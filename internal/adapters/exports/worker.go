// Package exports renders store datasets into artifacts and persists them in
// the byte store, either synchronously or through an asynchronous worker.
package exports

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/log"
	"fieldmonitor/pkg/domain"
)

// KeyPrefix is prepended to every artifact key in the byte store.
const KeyPrefix = "exports/"

// Status describes the lifecycle stage of an export request.
type Status string

// Export lifecycle stages.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact is a stored rendering of a dataset.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Dataset     Dataset    `json:"dataset"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	r.Formats = slices.Clone(r.Formats)
	r.Artifacts = slices.Clone(r.Artifacts)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}

// Input is an enqueue request.
type Input struct {
	Dataset Dataset
	Formats []Format
}

// Source supplies the snapshot an export renders.
type Source interface {
	Snapshot() domain.Snapshot
}

// Scheduler queues export requests and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(ctx context.Context, id string) (Record, bool)
}

// ErrQueueFull is returned when the worker cannot accept more requests.
var ErrQueueFull = errors.New("export queue full")

// Worker executes exports asynchronously.
type Worker struct {
	source Source
	store  blob.Store
	logger *log.Logger

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Scheduler = (*Worker)(nil)

// NewWorker constructs a worker writing artifacts to store.
func NewWorker(source Source, store blob.Store, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		logger: logger.WithComponent(log.ComponentExports),
		queue:  make(chan string, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue validates input, records a queued export and schedules it.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	if len(input.Dataset.Formats()) == 0 {
		return Record{}, fmt.Errorf("unknown dataset %q", input.Dataset)
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = input.Dataset.Formats()
	}
	uniq := make([]Format, 0, len(formats))
	for _, f := range formats {
		if slices.Contains(uniq, f) {
			continue
		}
		if !input.Dataset.Supports(f) {
			return Record{}, fmt.Errorf("format %s not supported by dataset %s", f, input.Dataset)
		}
		uniq = append(uniq, f)
	}

	now := time.Now().UTC()
	record := Record{
		ID:        uuid.NewString(),
		Dataset:   input.Dataset,
		Formats:   uniq,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.fail(record.ID, ErrQueueFull.Error())
		return Record{}, ErrQueueFull
	}
	return queued, nil
}

// Get returns a copy of the export record. Exports unknown to this process,
// such as those finished before a restart, are rebuilt from the artifacts
// left in the store.
func (w *Worker) Get(ctx context.Context, id string) (Record, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	var out Record
	if ok {
		out = record.copy()
	}
	w.mu.RUnlock()
	if ok {
		return out, true
	}
	recovered, err := Recover(ctx, w.store, id)
	if err != nil {
		w.logger.WarnContext(ctx, "recover export failed", log.FieldID, id, log.FieldError, err)
		return Record{}, false
	}
	if len(recovered.Artifacts) == 0 {
		return Record{}, false
	}
	return recovered, true
}

// Recover rebuilds a succeeded export record from the artifacts stored under
// KeyPrefix+id. A record without artifacts means nothing was stored.
func Recover(ctx context.Context, store blob.Store, id string) (Record, error) {
	if id == "" || strings.Contains(id, "/") {
		return Record{}, nil
	}
	infos, err := store.List(ctx, KeyPrefix+id+"/")
	if err != nil {
		return Record{}, fmt.Errorf("list artifacts: %w", err)
	}
	record := Record{ID: id, Status: StatusSucceeded}
	for _, info := range infos {
		name := path.Base(info.Key)
		ext := path.Ext(name)
		dataset, format := Dataset(strings.TrimSuffix(name, ext)), Format(strings.TrimPrefix(ext, "."))
		if !dataset.Supports(format) {
			continue
		}
		// List omits content type on some backends.
		head, err := store.Head(ctx, info.Key)
		if err != nil {
			return Record{}, fmt.Errorf("head %s: %w", info.Key, err)
		}
		record.Dataset = dataset
		record.Formats = append(record.Formats, format)
		record.Artifacts = append(record.Artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: cmp.Or(head.ContentType, format.ContentType()),
			SizeBytes:   head.Size,
			ETag:        head.ETag,
			CreatedAt:   head.LastModified,
		})
		if record.CreatedAt.IsZero() || head.LastModified.Before(record.CreatedAt) {
			record.CreatedAt = head.LastModified
		}
		if head.LastModified.After(record.UpdatedAt) {
			record.UpdatedAt = head.LastModified
		}
	}
	if len(record.Artifacts) > 0 {
		completed := record.UpdatedAt
		record.CompletedAt = &completed
	}
	return record, nil
}

func (w *Worker) process(id string) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	var dataset Dataset
	var formats []Format
	if ok {
		dataset, formats = record.Dataset, slices.Clone(record.Formats)
	}
	w.mu.RUnlock()
	if !ok {
		return
	}

	w.updateStatus(id, StatusRunning)
	snap := w.source.Snapshot()
	artifacts := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		art, err := Store(w.ctx, w.store, id, dataset, f, snap)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		artifacts = append(artifacts, art)
	}
	w.complete(id, artifacts)
}

// Store renders one artifact and writes it under KeyPrefix.
func Store(ctx context.Context, store blob.Store, id string, d Dataset, f Format, snap domain.Snapshot) (Artifact, error) {
	var buf bytes.Buffer
	if err := Render(&buf, d, f, snap); err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", d, err)
	}
	key := fmt.Sprintf("%s%s/%s.%s", KeyPrefix, id, d, f)
	info, err := store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: f.ContentType(),
		Metadata:    map[string]string{"dataset": string(d)},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact: %w", err)
	}
	return Artifact{
		Key:         key,
		Format:      f,
		ContentType: f.ContentType(),
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = time.Now().UTC()
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export completed", log.FieldID, id, log.FieldCount, len(artifacts))
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", log.FieldID, id, log.FieldError, reason)
}
