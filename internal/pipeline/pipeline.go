// Package pipeline runs discovery, sizing and removal of node_modules folders
// concurrently and funnels every result through a store.Store.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cuire/npmnuke/internal/nodemodules"
	"github.com/cuire/npmnuke/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var errAlreadyStarted = errors.New("pipeline already started")

// Config is fixed for the lifetime of a pipeline.
type Config struct {
	Root     string
	SkipDot  bool
	Ignore   nodemodules.IgnoreSet
	SkipSize bool
	DryRun   bool
	// Workers bounds concurrent size walks, 0 means twice the CPU count
	Workers int
}

func DefaultWorkers() int {
	return runtime.NumCPU() * 2
}

type Pipeline struct {
	cfg    Config
	store  *store.Store
	sink   Sink
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sizeSlots *semaphore.Weighted
	sizeTasks errgroup.Group
	removals  sync.WaitGroup

	discoveryDone chan struct{}

	mu       sync.Mutex
	started  bool
	draining bool
}

func New(cfg Config, folders *store.Store, sink Sink, logger *log.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}

	if sink == nil {
		sink = NopSink{}
	}

	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		cfg:           cfg,
		store:         folders,
		sink:          sink,
		logger:        logger,
		sizeSlots:     semaphore.NewWeighted(int64(cfg.Workers)),
		discoveryDone: make(chan struct{}),
	}
}

// Config returns the configuration with defaults filled in.
func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Start validates the root and launches discovery in the background. An
// invalid root is reported here, before anything is discovered.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errAlreadyStarted
	}

	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	folders, err := nodemodules.Find(p.cfg.Root, nodemodules.FindOptions{
		SkipDot: p.cfg.SkipDot,
		Ignore:  p.cfg.Ignore,
		Logger:  p.logger,
		Context: p.ctx,
	})

	if err != nil {
		p.cancel()
		close(p.discoveryDone)

		return err
	}

	go p.discover(folders)

	return nil
}

func (p *Pipeline) discover(folders iter.Seq2[string, error]) {
	defer close(p.discoveryDone)

	startTime := time.Now()
	found := 0

	p.logger.Debug("Scanning", "root", p.cfg.Root, "workers", p.cfg.Workers)

	for path, err := range folders {
		if err != nil {
			p.logger.Warn("Walk error", "error", err)
			continue
		}

		folder, created := p.store.RecordDiscovery(path)

		if !created {
			continue
		}

		found++

		p.logger.Debug("Found node_modules", "path", path, "id", folder.ID)
		p.sink.Discovered(folder)

		if !p.cfg.SkipSize {
			p.dispatchSize(path)
		}
	}

	elapsed := time.Since(startTime)

	p.logger.Debug("Scan finished", "found", found, "elapsed", elapsed)
	p.sink.DiscoveryFinished(found, elapsed, p.ctx.Err())
}

// dispatchSize never blocks the caller. The task waits for a free slot in
// its own goroutine.
func (p *Pipeline) dispatchSize(path string) {
	p.sizeTasks.Go(func() error {
		if err := p.sizeSlots.Acquire(p.ctx, 1); err != nil {
			return nil
		}

		defer p.sizeSlots.Release(1)

		sizeBytes, err := nodemodules.CalculateSize(p.ctx, nodemodules.Target(path))

		if p.ctx.Err() != nil {
			return nil
		}

		if err != nil {
			p.logger.Warn("Cannot calculate size", "path", path, "error", err)

			folder, staleErr := p.store.RecordSizeFailed(path)

			if staleErr != nil {
				p.logger.Warn("Dropping size failure", "path", path, "error", staleErr)
				return nil
			}

			p.sink.SizeFailed(folder, err)

			return nil
		}

		folder, err := p.store.RecordSize(path, sizeBytes)

		if err != nil {
			p.logger.Warn("Dropping size", "path", path, "error", err)
			return nil
		}

		p.logger.Debug("Sized", "path", path, "bytes", sizeBytes)
		p.sink.SizeUpdated(folder)

		return nil
	})
}

// RequestRemoval validates and dispatches the removal of the node_modules
// folder inside path. The removal itself runs in the background.
func (p *Pipeline) RequestRemoval(path string) error {
	p.mu.Lock()

	// a cancelled parent context means the user quit
	if p.draining || (p.ctx != nil && p.ctx.Err() != nil) {
		p.mu.Unlock()
		return ErrShuttingDown
	}

	folder, err := p.store.BeginRemoval(path, !p.cfg.SkipSize)

	if err != nil {
		p.mu.Unlock()
		return &InvalidActionError{Path: path, Reason: err}
	}

	// Add must happen before Wait can observe draining
	p.removals.Add(1)
	p.mu.Unlock()

	p.sink.RemovalStarted(folder)

	go func() {
		defer p.removals.Done()

		p.remove(path)
	}()

	return nil
}

// RequestRemovalByID is RequestRemoval for the folder with the given
// store.FolderID.
func (p *Pipeline) RequestRemovalByID(id string) error {
	folder, ok := p.store.ByID(id)

	if !ok {
		return &InvalidActionError{Path: id, Reason: store.ErrStaleUpdate}
	}

	return p.RequestRemoval(folder.Path)
}

func (p *Pipeline) remove(path string) {
	if err := nodemodules.Remove(path, p.cfg.DryRun); err != nil {
		p.logger.Error("Cannot remove", "path", path, "error", err)

		folder, staleErr := p.store.AbortRemoval(path, err)

		if staleErr != nil {
			p.logger.Warn("Dropping removal failure", "path", path, "error", staleErr)
			return
		}

		p.sink.RemovalFailed(folder, err)

		return
	}

	folder, err := p.store.RecordRemoved(path)

	if err != nil {
		p.logger.Warn("Dropping removal", "path", path, "error", err)
		return
	}

	p.logger.Debug("Removed", "path", nodemodules.Target(path), "dryRun", p.cfg.DryRun)
	p.sink.Removed(folder)
}

// Shutdown stops discovery and pending size calculations and rejects new
// removal requests. Removals already running are left to finish.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draining = true

	if p.cancel != nil {
		p.cancel()
	}
}

// WaitDiscovery blocks until the walk has finished.
func (p *Pipeline) WaitDiscovery() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return
	}

	<-p.discoveryDone
}

// WaitSizing blocks until the walk and every size task have finished.
func (p *Pipeline) WaitSizing() {
	p.WaitDiscovery()

	// discovery is the only caller of sizeTasks.Go, so it is safe to wait now
	_ = p.sizeTasks.Wait()
}

// Wait rejects new removal requests and blocks until every task, including
// running removals, has finished.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	p.draining = true
	cancel := p.cancel
	p.mu.Unlock()

	p.WaitSizing()
	p.removals.Wait()

	if cancel != nil {
		cancel()
	}
}
