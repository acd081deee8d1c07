package pipeline

import (
	"time"

	"github.com/cuire/npmnuke/internal/store"
)

// Sink receives every change the pipeline makes to the store. Methods are
// called from several goroutines and must not block for long.
type Sink interface {
	Discovered(folder store.Folder)
	SizeUpdated(folder store.Folder)
	SizeFailed(folder store.Folder, err error)
	RemovalStarted(folder store.Folder)
	Removed(folder store.Folder)
	RemovalFailed(folder store.Folder, err error)
	DiscoveryFinished(found int, elapsed time.Duration, err error)
}

type EventKind int

const (
	EventDiscovered EventKind = iota
	EventSizeUpdated
	EventSizeFailed
	EventRemovalStarted
	EventRemoved
	EventRemovalFailed
	EventDiscoveryFinished
)

func (k EventKind) String() string {
	switch k {
	case EventDiscovered:
		return "discovered"
	case EventSizeUpdated:
		return "size updated"
	case EventSizeFailed:
		return "size failed"
	case EventRemovalStarted:
		return "removal started"
	case EventRemoved:
		return "removed"
	case EventRemovalFailed:
		return "removal failed"
	case EventDiscoveryFinished:
		return "discovery finished"
	}

	return "unknown"
}

// Event is a single sink call flattened into a value. Found and Elapsed are
// only set for EventDiscoveryFinished.
type Event struct {
	Kind    EventKind
	Folder  store.Folder
	Err     error
	Found   int
	Elapsed time.Duration
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Discovered(folder store.Folder) {
	f(Event{Kind: EventDiscovered, Folder: folder})
}

func (f SinkFunc) SizeUpdated(folder store.Folder) {
	f(Event{Kind: EventSizeUpdated, Folder: folder})
}

func (f SinkFunc) SizeFailed(folder store.Folder, err error) {
	f(Event{Kind: EventSizeFailed, Folder: folder, Err: err})
}

func (f SinkFunc) RemovalStarted(folder store.Folder) {
	f(Event{Kind: EventRemovalStarted, Folder: folder})
}

func (f SinkFunc) Removed(folder store.Folder) {
	f(Event{Kind: EventRemoved, Folder: folder})
}

func (f SinkFunc) RemovalFailed(folder store.Folder, err error) {
	f(Event{Kind: EventRemovalFailed, Folder: folder, Err: err})
}

func (f SinkFunc) DiscoveryFinished(found int, elapsed time.Duration, err error) {
	f(Event{Kind: EventDiscoveryFinished, Found: found, Elapsed: elapsed, Err: err})
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Discovered(store.Folder)                     {}
func (NopSink) SizeUpdated(store.Folder)                    {}
func (NopSink) SizeFailed(store.Folder, error)              {}
func (NopSink) RemovalStarted(store.Folder)                 {}
func (NopSink) Removed(store.Folder)                        {}
func (NopSink) RemovalFailed(store.Folder, error)           {}
func (NopSink) DiscoveryFinished(int, time.Duration, error) {}
