package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/internal"
	"gogrid/internal/compute"
	"gogrid/internal/errors"
	"gogrid/internal/summary"
	"gogrid/models"
	"gogrid/ports"

	"golang.org/x/sync/semaphore"
)

// GridServiceConfig holds the knobs of a grid service
type GridServiceConfig struct {
	Rows                 int
	ComputeTimeout       time.Duration
	MaxConcurrentImports int64
}

// DefaultGridServiceConfig returns the settings of a fresh editor: ten rows
// and a five second compute deadline
func DefaultGridServiceConfig() GridServiceConfig {
	return GridServiceConfig{
		Rows:                 grid.DefaultRows,
		ComputeTimeout:       5 * time.Second,
		MaxConcurrentImports: 2,
	}
}

// GridService owns the editing sessions of this instance. Each grid key has
// one document holding the raw grid, the last accepted computed grid and the
// sequencer that decides which channel responses are still current.
type GridService struct {
	repo      ports.GridRepository
	channel   *compute.Channel
	publisher ports.EventPublisher
	workbook  ports.WorkbookCodec
	instance  core.InstanceID
	config    GridServiceConfig
	importSem *semaphore.Weighted
	logger    *internal.Logger

	mu   sync.Mutex
	docs map[core.GridKey]*document
}

type document struct {
	key core.GridKey

	mu       sync.Mutex
	loaded   bool
	raw      grid.RawGrid
	computed grid.ComputedGrid
	version  int64
	seq      compute.Sequencer
	applied  uint64
	// closed and replaced every time a computed grid is applied
	changed chan struct{}
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.GridEvent) {}

// NewGridService creates a grid service. publisher and workbook may be nil.
func NewGridService(
	repo ports.GridRepository,
	channel *compute.Channel,
	publisher ports.EventPublisher,
	workbook ports.WorkbookCodec,
	config GridServiceConfig,
	logger *internal.Logger,
) *GridService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.Rows < 1 {
		config.Rows = grid.DefaultRows
	}
	if config.ComputeTimeout <= 0 {
		config.ComputeTimeout = DefaultGridServiceConfig().ComputeTimeout
	}
	if config.MaxConcurrentImports < 1 {
		config.MaxConcurrentImports = 1
	}

	return &GridService{
		repo:      repo,
		channel:   channel,
		publisher: publisher,
		workbook:  workbook,
		instance:  core.NewInstanceID(),
		config:    config,
		importSem: semaphore.NewWeighted(config.MaxConcurrentImports),
		logger:    logger.With("GridService"),
		docs:      make(map[core.GridKey]*document),
	}
}

// Instance identifies this service in the origin of every write it makes
func (s *GridService) Instance() core.InstanceID {
	return s.instance
}

// Open restores the grid stored under key, creating and saving an empty one
// on first use, and returns its current view. The first open of a key
// submits the restored grid for computation.
func (s *GridService) Open(ctx context.Context, key core.GridKey) (*models.GridView, error) {
	doc := s.document(key)
	doc.mu.Lock()
	defer doc.mu.Unlock()

	if err := s.ensureLoaded(ctx, doc); err != nil {
		return nil, err
	}
	return s.view(doc), nil
}

// SetCell stores new text for one "B3" style cell and submits the updated
// grid. Highlight in the result tells the caller the text is a negative
// number.
func (s *GridService) SetCell(ctx context.Context, key core.GridKey, cell string, text string) (*models.CellUpdateResult, error) {
	addr, err := grid.ParseAddress(cell)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cell %q", cell)
	}

	doc := s.document(key)
	doc.mu.Lock()
	if err := s.ensureLoaded(ctx, doc); err != nil {
		doc.mu.Unlock()
		return nil, err
	}

	next, err := doc.raw.WithCell(addr, text)
	if err != nil {
		doc.mu.Unlock()
		return nil, errors.Wrapf(err, "cannot edit %s", addr)
	}

	seq, err := s.commitLocked(ctx, doc, next)
	doc.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &models.CellUpdateResult{
		Key:       key,
		Cell:      addr.String(),
		Value:     text,
		Seq:       seq,
		Highlight: summary.IsNegative(text),
	}

	s.publisher.Publish(models.GridEvent{
		Key:  key,
		Type: models.EventEdited,
		Seq:  seq,
		Data: map[string]interface{}{
			"cell":      result.Cell,
			"value":     text,
			"highlight": result.Highlight,
		},
	})
	return result, nil
}

// Replace swaps in a whole raw grid, normalized to the configured shape
func (s *GridService) Replace(ctx context.Context, key core.GridKey, raw grid.RawGrid) (*models.GridView, error) {
	normalized := grid.Normalize(raw, s.config.Rows)

	doc := s.document(key)
	doc.mu.Lock()
	if err := s.ensureLoaded(ctx, doc); err != nil {
		doc.mu.Unlock()
		return nil, err
	}

	seq, err := s.commitLocked(ctx, doc, normalized)
	if err != nil {
		doc.mu.Unlock()
		return nil, err
	}
	view := s.view(doc)
	doc.mu.Unlock()

	s.publisher.Publish(models.GridEvent{Key: key, Type: models.EventReplaced, Seq: seq})
	return view, nil
}

// Recompute submits the current raw grid and waits until a result at least
// as new as that submission has been applied
func (s *GridService) Recompute(ctx context.Context, key core.GridKey) (*models.GridView, error) {
	doc := s.document(key)
	doc.mu.Lock()
	if err := s.ensureLoaded(ctx, doc); err != nil {
		doc.mu.Unlock()
		return nil, err
	}
	seq, err := s.submitLocked(doc)
	doc.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.waitApplied(ctx, doc, seq)
}

// Compute runs a grid through the channel without touching any session
func (s *GridService) Compute(ctx context.Context, raw grid.RawGrid) (grid.ComputedGrid, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ComputeTimeout)
	defer cancel()

	computed, err := s.channel.Compute(ctx, grid.Normalize(raw, len(raw)))
	if err != nil {
		return nil, errors.Wrap(err, "compute failed")
	}
	return computed, nil
}

// ApplyExternal reacts to a write made by another instance: the stored grid
// is reloaded and submitted like a local edit. Changes this instance made,
// keys nobody here has opened and versions already seen are ignored.
func (s *GridService) ApplyExternal(ctx context.Context, change models.GridChange) error {
	if change.Origin == s.instance {
		return nil
	}

	s.mu.Lock()
	doc, ok := s.docs[change.Key]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	doc.mu.Lock()
	if !doc.loaded || (change.Version != 0 && change.Version <= doc.version) {
		doc.mu.Unlock()
		return nil
	}

	stored, err := s.repo.Load(ctx, change.Key)
	if err != nil {
		doc.mu.Unlock()
		if core.IsNotFoundError(err) {
			return nil
		}
		return errors.DatabaseError("failed to reload grid", err)
	}

	doc.raw = grid.Normalize(stored.Raw, s.config.Rows)
	doc.version = stored.Version
	seq, err := s.submitLocked(doc)
	doc.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("grid %s changed by %s (version %d), resubmitted as %d",
		change.Key, change.Origin, stored.Version, seq)
	s.publisher.Publish(models.GridEvent{
		Key:  change.Key,
		Type: models.EventExternal,
		Seq:  seq,
		Data: map[string]interface{}{
			"origin":  change.Origin.String(),
			"version": stored.Version,
		},
	})
	return nil
}

// Watch applies every change reported by feed until ctx is done
func (s *GridService) Watch(ctx context.Context, feed ports.ChangeFeed) error {
	return feed.Listen(ctx, func(change models.GridChange) {
		if err := s.ApplyExternal(ctx, change); err != nil {
			s.logger.Warn("failed to apply change to %s: %v", change.Key, err)
		}
	})
}

// Summary returns statistics and highlights of a freshly computed grid
func (s *GridService) Summary(ctx context.Context, key core.GridKey) (*summary.GridSummary, error) {
	view, err := s.Recompute(ctx, key)
	if err != nil {
		return nil, err
	}
	out := summary.Summarize(view.Result)
	return &out, nil
}

// ExportWorkbook writes the raw and freshly computed grid as a workbook
func (s *GridService) ExportWorkbook(ctx context.Context, key core.GridKey, w io.Writer) error {
	if s.workbook == nil {
		return errors.InternalError("workbook support is not configured")
	}
	view, err := s.Recompute(ctx, key)
	if err != nil {
		return err
	}
	if err := s.workbook.Export(w, view.RawData, view.Result); err != nil {
		return errors.Wrap(err, "failed to export workbook")
	}
	return nil
}

// ImportWorkbook replaces the grid with the contents of a workbook. Only a
// bounded number of imports are parsed at once.
func (s *GridService) ImportWorkbook(ctx context.Context, key core.GridKey, r io.Reader) (*models.GridView, error) {
	if s.workbook == nil {
		return nil, errors.InternalError("workbook support is not configured")
	}
	if err := s.importSem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "no import slot available")
	}
	raw, err := s.workbook.Import(r, s.config.Rows)
	s.importSem.Release(1)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	return s.Replace(ctx, key, raw)
}

// Delete removes a stored grid and forgets its session
func (s *GridService) Delete(ctx context.Context, key core.GridKey) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return errors.DatabaseError("failed to delete grid", err)
	}
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}

// ComputeStats reports the throughput of the compute channel
func (s *GridService) ComputeStats() compute.Stats {
	return s.channel.Stats()
}

// Keys lists every stored grid key
func (s *GridService) Keys(ctx context.Context) ([]core.GridKey, error) {
	keys, err := s.repo.ListKeys(ctx)
	if err != nil {
		return nil, errors.DatabaseError("failed to list grids", err)
	}
	return keys, nil
}

func (s *GridService) document(key core.GridKey) *document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[key]
	if !ok {
		doc = &document{key: key, changed: make(chan struct{})}
		s.docs[key] = doc
	}
	return doc
}

// ensureLoaded restores or creates the grid. Callers hold doc.mu.
func (s *GridService) ensureLoaded(ctx context.Context, doc *document) error {
	if doc.loaded {
		return nil
	}

	stored, err := s.repo.Load(ctx, doc.key)
	switch {
	case err == nil:
		doc.raw = grid.Normalize(stored.Raw, s.config.Rows)
	case core.IsNotFoundError(err):
		doc.raw = grid.NewRawGrid(s.config.Rows)
		stored, err = s.repo.Save(ctx, doc.key, doc.raw, s.instance)
		if err != nil {
			return errors.DatabaseError("failed to create grid", err)
		}
		s.logger.Info("created grid %s with %d rows", doc.key, s.config.Rows)
	default:
		return errors.DatabaseError("failed to load grid", err)
	}

	doc.version = stored.Version
	doc.computed = grid.NewComputedGrid(s.config.Rows)

	if _, err := s.submitLocked(doc); err != nil {
		return err
	}
	doc.loaded = true
	return nil
}

// commitLocked saves next, makes it the document's raw grid and submits it.
// Nothing changes when the save fails.
func (s *GridService) commitLocked(ctx context.Context, doc *document, next grid.RawGrid) (uint64, error) {
	stored, err := s.repo.Save(ctx, doc.key, next, s.instance)
	if err != nil {
		return 0, errors.DatabaseError("failed to save grid", err)
	}
	doc.raw = next
	doc.version = stored.Version
	return s.submitLocked(doc)
}

// submitLocked sends the current raw grid to the channel under a new ticket.
// Tickets are taken while doc.mu is held so they reach the channel in order.
func (s *GridService) submitLocked(doc *document) (uint64, error) {
	seq := doc.seq.Next()
	if _, err := s.channel.Submit(doc.raw, s.onComputed(doc, seq)); err != nil {
		return 0, errors.Wrap(err, "failed to submit grid")
	}
	return seq, nil
}

func (s *GridService) onComputed(doc *document, seq uint64) compute.Handler {
	return func(resp compute.Response) {
		doc.mu.Lock()
		if !doc.seq.Accept(seq) {
			latest := doc.seq.Latest()
			doc.mu.Unlock()
			s.logger.Trace("discarding result %d for %s, latest is %d", seq, doc.key, latest)
			return
		}
		doc.computed = resp.Grid
		doc.applied = seq
		close(doc.changed)
		doc.changed = make(chan struct{})
		doc.mu.Unlock()

		s.publisher.Publish(models.GridEvent{
			Key:  doc.key,
			Type: models.EventComputed,
			Seq:  seq,
			Data: map[string]interface{}{
				"result":      resp.Grid,
				"negatives":   summary.Negatives(resp.Grid),
				"duration_ms": float64(resp.Duration.Microseconds()) / 1000,
			},
		})
	}
}

func (s *GridService) waitApplied(ctx context.Context, doc *document, seq uint64) (*models.GridView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ComputeTimeout)
	defer cancel()

	for {
		doc.mu.Lock()
		if doc.applied >= seq {
			view := s.view(doc)
			doc.mu.Unlock()
			return view, nil
		}
		changed := doc.changed
		doc.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, errors.ComputeTimeout(fmt.Errorf("%w: %s request %d: %v",
				core.ErrComputeTimeout, doc.key, seq, ctx.Err()))
		}
	}
}

// view snapshots a document. Callers hold doc.mu.
func (s *GridService) view(doc *document) *models.GridView {
	latest := doc.seq.Latest()
	return &models.GridView{
		Key:         doc.key,
		RawData:     doc.raw.Clone(),
		Result:      doc.computed.Clone(),
		Seq:         latest,
		AppliedSeq:  doc.applied,
		Pending:     doc.applied != latest,
		Version:     doc.version,
		Fingerprint: grid.Fingerprint(doc.raw),
	}
}
