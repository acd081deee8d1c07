package pipeline

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cuire/npmnuke/internal/nodemodules"
	"github.com/cuire/npmnuke/internal/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Sink() Sink {
	return SinkFunc(func(event Event) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.events = append(r.events, event)
	})
}

func (r *recordingSink) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0

	for _, event := range r.events {
		if event.Kind == kind {
			count++
		}
	}

	return count
}

// makeProjects creates root/<i>/node_modules/file.txt with 1 KB each
func makeProjects(t *testing.T, count int) string {
	t.Helper()

	root := t.TempDir()

	for i := 0; i < count; i++ {
		nodeModules := filepath.Join(root, strconv.Itoa(i), nodemodules.NodeModules)

		if err := os.MkdirAll(nodeModules, 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filepath.Join(nodeModules, "file.txt"), []byte(strings.Repeat("a", 1024)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return root
}

func newPipeline(t *testing.T, cfg Config) (*Pipeline, *recordingSink) {
	t.Helper()

	sink := &recordingSink{}
	p := New(cfg, store.New(), sink.Sink(), log.New(io.Discard))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	t.Cleanup(p.Wait)

	return p, sink
}

func TestPipelineDiscoversAndSizes(t *testing.T) {
	root := makeProjects(t, 3)
	p, sink := newPipeline(t, Config{Root: root, SkipDot: true, Workers: 2})

	p.WaitSizing()

	snapshot := p.Store().Snapshot()

	if len(snapshot) != 3 {
		t.Fatalf("Expected 3 folders, got %d", len(snapshot))
	}

	seen := map[string]bool{}

	for _, folder := range snapshot {
		seen[filepath.Base(folder.Path)] = true

		if !folder.Sized || folder.State != store.Sized {
			t.Errorf("Expected %s to be sized, got %+v", folder.Path, folder)
		}

		if mb := nodemodules.Megabytes(folder.SizeBytes); math.Abs(mb-0.000977) > 0.000001 {
			t.Errorf("Expected ≈0.000977 MB for %s, got %f", folder.Path, mb)
		}
	}

	for _, name := range []string{"0", "1", "2"} {
		if !seen[name] {
			t.Errorf("Expected %s to be discovered", name)
		}
	}

	if sink.count(EventDiscovered) != 3 || sink.count(EventSizeUpdated) != 3 {
		t.Errorf("Expected 3 discoveries and 3 sizes, got %d and %d", sink.count(EventDiscovered), sink.count(EventSizeUpdated))
	}

	if sink.count(EventDiscoveryFinished) != 1 {
		t.Errorf("Expected exactly one DiscoveryFinished event")
	}
}

func TestPipelineRemovesTwiceRejected(t *testing.T) {
	root := makeProjects(t, 1)
	removed := make(chan store.Folder, 1)

	p := New(Config{Root: root}, store.New(), SinkFunc(func(event Event) {
		if event.Kind == EventRemoved {
			removed <- event.Folder
		}
	}), log.New(io.Discard))

	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(p.Wait)

	p.WaitSizing()

	parent := filepath.Join(root, "0")

	if err := p.RequestRemoval(parent); err != nil {
		t.Fatalf("First removal rejected: %v", err)
	}

	if folder := <-removed; folder.Path != parent {
		t.Fatalf("Unexpected removal of %s", folder.Path)
	}

	err := p.RequestRemoval(parent)

	if !errors.Is(err, store.ErrAlreadyRemoved) {
		t.Fatalf("Expected the second removal to be rejected as already removed, got %v", err)
	}

	folder, _ := p.Store().Get(parent)

	if folder.State != store.Removed {
		t.Errorf("Expected Removed, got %s", folder.State)
	}

	if _, statErr := os.Stat(filepath.Join(parent, nodemodules.NodeModules)); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("Expected node_modules to be gone, got %v", statErr)
	}
}

func TestPipelineDoubleRemovalBeforeShutdown(t *testing.T) {
	root := makeProjects(t, 1)
	p, _ := newPipeline(t, Config{Root: root})

	p.WaitSizing()

	parent := filepath.Join(root, "0")

	if err := p.RequestRemoval(parent); err != nil {
		t.Fatal(err)
	}

	err := p.RequestRemoval(parent)

	var invalid *InvalidActionError

	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidActionError, got %v", err)
	}

	if !errors.Is(err, store.ErrRemovalInFlight) && !errors.Is(err, store.ErrAlreadyRemoved) {
		t.Errorf("Unexpected reason: %v", invalid.Reason)
	}

	p.Wait()

	if folder, _ := p.Store().Get(parent); folder.State != store.Removed {
		t.Errorf("Expected Removed, got %s", folder.State)
	}
}

func TestPipelineRejectsRemovalWhileSizePending(t *testing.T) {
	root := makeProjects(t, 1)
	sink := &recordingSink{}
	folders := store.New()
	parent := filepath.Join(root, "0")

	// Recorded by hand so no size task exists for it
	before, _ := folders.RecordDiscovery(parent)

	p := New(Config{Root: root}, folders, sink.Sink(), log.New(io.Discard))

	err := p.RequestRemoval(parent)

	if !errors.Is(err, store.ErrSizePending) {
		t.Fatalf("Expected ErrSizePending, got %v", err)
	}

	after, _ := folders.Get(parent)

	if after != before {
		t.Errorf("Expected the record to be unchanged, got %+v", after)
	}

	if sink.count(EventRemovalStarted) != 0 {
		t.Error("A rejected removal must not publish events")
	}

	if _, statErr := os.Stat(filepath.Join(parent, nodemodules.NodeModules)); statErr != nil {
		t.Errorf("Expected node_modules to survive, got %v", statErr)
	}
}

func TestPipelineWithoutSizing(t *testing.T) {
	root := makeProjects(t, 2)
	p, sink := newPipeline(t, Config{Root: root, SkipSize: true})

	p.WaitDiscovery()

	if sink.count(EventSizeUpdated) != 0 {
		t.Error("Expected no sizes with sizing disabled")
	}

	parent := filepath.Join(root, "1")

	if err := p.RequestRemoval(parent); err != nil {
		t.Fatalf("Expected unsized removal to be allowed, got %v", err)
	}

	p.Wait()

	folder, _ := p.Store().Get(parent)

	if folder.State != store.Removed || folder.Sized {
		t.Errorf("Expected Discovered to go straight to Removed, got %+v", folder)
	}
}

func TestPipelineDryRun(t *testing.T) {
	root := makeProjects(t, 1)
	p, sink := newPipeline(t, Config{Root: root, DryRun: true})

	p.WaitSizing()

	parent := filepath.Join(root, "0")

	if err := p.RequestRemoval(parent); err != nil {
		t.Fatal(err)
	}

	p.Wait()

	if folder, _ := p.Store().Get(parent); folder.State != store.Removed {
		t.Errorf("Expected dry run to report Removed, got %s", folder.State)
	}

	if _, err := os.Stat(filepath.Join(parent, nodemodules.NodeModules)); err != nil {
		t.Errorf("Expected node_modules to survive a dry run, got %v", err)
	}

	if sink.count(EventRemoved) != 1 {
		t.Error("Expected a Removed event")
	}
}

func TestPipelineRemovalFailure(t *testing.T) {
	root := makeProjects(t, 1)
	p, sink := newPipeline(t, Config{Root: root})

	p.WaitSizing()

	parent := filepath.Join(root, "0")

	// Vanishes behind the pipeline's back
	if err := os.RemoveAll(filepath.Join(parent, nodemodules.NodeModules)); err != nil {
		t.Fatal(err)
	}

	if err := p.RequestRemoval(parent); err != nil {
		t.Fatal(err)
	}

	p.Wait()

	folder, _ := p.Store().Get(parent)

	if folder.State != store.Sized || !errors.Is(folder.RemoveErr, nodemodules.ErrNotFound) {
		t.Errorf("Expected the failed removal to be rolled back, got %+v", folder)
	}

	if sink.count(EventRemovalFailed) != 1 {
		t.Error("Expected a RemovalFailed event")
	}
}

func TestPipelineInvalidRoot(t *testing.T) {
	p := New(Config{Root: filepath.Join(t.TempDir(), "missing")}, store.New(), nil, log.New(io.Discard))

	if err := p.Start(context.Background()); !errors.Is(err, nodemodules.ErrInvalidRoot) {
		t.Errorf("Expected ErrInvalidRoot, got %v", err)
	}

	// Must not hang
	p.Wait()

	if p.Store().Len() != 0 {
		t.Error("Expected nothing to be discovered")
	}
}

func TestPipelineShutdown(t *testing.T) {
	root := makeProjects(t, 3)
	p, _ := newPipeline(t, Config{Root: root})

	p.Shutdown()

	if err := p.RequestRemoval(filepath.Join(root, "0")); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Expected ErrShuttingDown, got %v", err)
	}

	p.Wait()

	for _, folder := range p.Store().Snapshot() {
		if folder.State == store.Removed {
			t.Errorf("Nothing should be removed after shutdown, got %s", folder.Path)
		}
	}
}

func TestPipelineRejectsRemovalAfterCancel(t *testing.T) {
	root := makeProjects(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	p := New(Config{Root: root}, store.New(), nil, log.New(io.Discard))

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(p.Wait)

	p.WaitSizing()
	cancel()

	parent := filepath.Join(root, "0")

	if err := p.RequestRemoval(parent); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Expected ErrShuttingDown, got %v", err)
	}

	if folder, _ := p.Store().Get(parent); folder.State != store.Sized {
		t.Errorf("Expected the record to stay sized, got %v", folder.State)
	}

	if _, err := os.Stat(filepath.Join(parent, nodemodules.NodeModules)); err != nil {
		t.Errorf("Expected node_modules to be kept, got %v", err)
	}
}

func TestPipelineSizingDoesNotBlockDiscovery(t *testing.T) {
	const projects = 6

	for _, workers := range []int{1, 2} {
		t.Run(strconv.Itoa(workers), func(t *testing.T) {
			root := makeProjects(t, projects)

			var discovered, active, maxActive atomic.Int32

			release := make(chan struct{})
			finished := make(chan struct{})

			// SizeUpdated runs while the size slot is held, so blocking here
			// keeps every slot busy until release
			sink := SinkFunc(func(event Event) {
				switch event.Kind {
				case EventDiscovered:
					discovered.Add(1)
				case EventDiscoveryFinished:
					close(finished)
				case EventSizeUpdated:
					current := active.Add(1)

					for {
						seen := maxActive.Load()

						if current <= seen || maxActive.CompareAndSwap(seen, current) {
							break
						}
					}

					<-release
					active.Add(-1)
				}
			})

			p := New(Config{Root: root, Workers: workers}, store.New(), sink, log.New(io.Discard))

			if err := p.Start(context.Background()); err != nil {
				t.Fatal(err)
			}

			var releaseOnce sync.Once
			unblock := func() { releaseOnce.Do(func() { close(release) }) }

			t.Cleanup(p.Wait)
			t.Cleanup(unblock)

			select {
			case <-finished:
			case <-time.After(10 * time.Second):
				t.Fatal("Discovery did not finish while size tasks were blocked")
			}

			if got := discovered.Load(); got != projects {
				t.Errorf("Expected %d discovered events before sizing finished, got %d", projects, got)
			}

			if sized := p.Store().Stats().Sized; sized > workers {
				t.Errorf("Expected at most %d sized folders while blocked, got %d", workers, sized)
			}

			unblock()
			p.WaitSizing()

			if got := maxActive.Load(); got < 1 || int(got) > workers {
				t.Errorf("Expected between 1 and %d concurrent size walks, got %d", workers, got)
			}

			if sized := p.Store().Stats().Sized; sized != projects {
				t.Errorf("Expected all %d folders to be sized, got %d", projects, sized)
			}
		})
	}
}

func TestPipelineRemovalByID(t *testing.T) {
	root := makeProjects(t, 2)
	removed := make(chan store.Folder, 1)

	p := New(Config{Root: root}, store.New(), SinkFunc(func(event Event) {
		if event.Kind == EventRemoved {
			removed <- event.Folder
		}
	}), log.New(io.Discard))

	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(p.Wait)

	p.WaitSizing()

	var invalid *InvalidActionError

	if err := p.RequestRemovalByID(store.FolderID("/nowhere")); !errors.As(err, &invalid) || !errors.Is(err, store.ErrStaleUpdate) {
		t.Errorf("Expected an unknown ID to be rejected, got %v", err)
	}

	parent := filepath.Join(root, "1")

	if err := p.RequestRemovalByID(store.FolderID(parent)); err != nil {
		t.Fatalf("Removal by ID rejected: %v", err)
	}

	if folder := <-removed; folder.Path != parent || folder.ID != store.FolderID(parent) {
		t.Errorf("Expected %s to be removed, got %+v", parent, folder)
	}

	if _, err := os.Stat(filepath.Join(root, "0", nodemodules.NodeModules)); err != nil {
		t.Errorf("Expected the other folder to be kept, got %v", err)
	}
}

func TestPipelineStartTwice(t *testing.T) {
	root := makeProjects(t, 0)
	p, _ := newPipeline(t, Config{Root: root})

	if err := p.Start(context.Background()); err == nil {
		t.Error("Expected a second Start to fail")
	}
}

func TestDefaultWorkers(t *testing.T) {
	p := New(Config{}, store.New(), nil, nil)

	if p.Config().Workers != DefaultWorkers() || DefaultWorkers() < 2 {
		t.Errorf("Unexpected default worker count %d", p.Config().Workers)
	}

	if workers := New(Config{Workers: 3}, store.New(), nil, nil).Config().Workers; workers != 3 {
		t.Errorf("Expected 3 workers, got %d", workers)
	}
}
