// Package cache keeps GPU resources loaded from assets. Every cache hands
// out LookupIDs; a resource may be reclaimed once the cache holds the only
// remaining owner of its id, which is how the renderer signals that no frame
// in flight binds it anymore.
//
// Caches are owned by the output frame and are not safe for concurrent use.
package cache

import (
	"errors"
	"fmt"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"github.com/risengine/ris/internal/ptr"
	"go.uber.org/zap"
)

var (
	ErrRingBufferBusy = errors.New("ring buffer entry still in use")
	ErrNotLoaded      = errors.New("resource not loaded")
)

// LookupID names one cache entry. Hold it for as long as the resource may be
// bound by a submitted command buffer, then Release it.
type LookupID = ptr.StrongPtr[int]

type entryState uint8

const (
	stateNone entryState = iota
	stateLoading
	stateLoaded
)

type entry[T any] struct {
	assetID  asset.AssetID
	lookupID *LookupID
	state    entryState
	receiver *jobs.OneshotReceiver[asset.Result[T]]
	value    T
}

// take removes the resource from e, waiting for a pending load.
func (e *entry[T]) take(w *jobs.Worker, log *zap.Logger, kind string) (T, bool) {
	var zero T
	state, receiver, value := e.state, e.receiver, e.value
	e.state, e.receiver, e.value = stateNone, nil, zero
	switch state {
	case stateLoading:
		res, err := receiver.Wait(w)
		if err == nil {
			err = res.Err
		}
		if err != nil {
			log.Warn("failed to load "+kind, zap.Stringer("asset", e.assetID), zap.Error(err))
			return zero, false
		}
		return res.Value, true
	case stateLoaded:
		return value, true
	}
	return zero, false
}

// poll advances a pending load without blocking.
func (e *entry[T]) poll(log *zap.Logger, kind string) {
	if e.state != stateLoading {
		return
	}
	res, ok := e.receiver.Receive()
	if !ok {
		return
	}
	e.receiver = nil
	if res.Err != nil {
		log.Error("failed to load "+kind, zap.Stringer("asset", e.assetID), zap.Error(res.Err))
		e.state = stateNone
		return
	}
	e.state, e.value = stateLoaded, res.Value
}

type loadFunc[T any] func(w *jobs.Worker, d gpu.Device, id asset.AssetID) *jobs.OneshotReceiver[asset.Result[T]]

// lookup is the state machine shared by the asset keyed caches:
// none, loading, loaded and back to none when freed.
type lookup[T any] struct {
	kind    string
	log     *zap.Logger
	load    loadFunc[T]
	free    func(d gpu.Device, v T)
	entries []*entry[T]
}

func (l *lookup[T]) alloc(w *jobs.Worker, d gpu.Device, id asset.AssetID) *LookupID {
	var e *entry[T]
	for _, candidate := range l.entries {
		if candidate.assetID.Equal(id) {
			e = candidate
			break
		}
	}
	if e == nil {
		for _, candidate := range l.entries {
			if candidate.lookupID.IsUnique() {
				e = candidate
				if v, ok := e.take(w, l.log, l.kind); ok {
					l.free(d, v)
				}
				e.assetID = id
				break
			}
		}
	}
	if e == nil {
		e = &entry[T]{assetID: id, lookupID: ptr.NewStrongPtr(len(l.entries))}
		l.entries = append(l.entries, e)
	}

	if e.state == stateNone {
		e.receiver = l.load(w, d, e.assetID)
		e.state = stateLoading
	}
	return e.lookupID.Clone()
}

func (l *lookup[T]) entry(id *LookupID) (*entry[T], error) {
	index := *id.Get()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("%s lookup id %d out of range", l.kind, index)
	}
	return l.entries[index], nil
}

func (l *lookup[T]) get(id *LookupID) (T, bool) {
	var zero T
	e, err := l.entry(id)
	if err != nil {
		l.log.Error("invalid lookup id", zap.Error(err))
		return zero, false
	}
	e.poll(l.log, l.kind)
	if e.state != stateLoaded {
		return zero, false
	}
	return e.value, true
}

// freeUnused frees every resource whose id is held by the cache alone. The
// device is waited on once before the first free.
func (l *lookup[T]) freeUnused(w *jobs.Worker, d gpu.Device) (int, error) {
	waited := false
	freed := 0
	for _, e := range l.entries {
		if !e.lookupID.IsUnique() || e.state == stateNone {
			continue
		}
		if !waited {
			if err := d.WaitIdle(); err != nil {
				return freed, fmt.Errorf("free unused %ss: %w", l.kind, err)
			}
			waited = true
		}
		if v, ok := e.take(w, l.log, l.kind); ok {
			l.free(d, v)
			freed++
			l.log.Debug("freed "+l.kind, zap.Stringer("asset", e.assetID))
		}
	}
	return freed, nil
}

// reimport frees every resource that is loaded or loading and starts loading
// it again.
func (l *lookup[T]) reimport(w *jobs.Worker, d gpu.Device) {
	for _, e := range l.entries {
		if e.state == stateNone {
			continue
		}
		if v, ok := e.take(w, l.log, l.kind); ok {
			l.free(d, v)
		}
		e.receiver = l.load(w, d, e.assetID)
		e.state = stateLoading
	}
	l.log.Info("reimporting "+l.kind+"s", zap.Int("entries", len(l.entries)))
}

func (l *lookup[T]) freeAll(w *jobs.Worker, d gpu.Device) {
	for _, e := range l.entries {
		if v, ok := e.take(w, l.log, l.kind); ok {
			l.free(d, v)
		}
		e.lookupID.Release()
	}
	l.entries = nil
}

func (l *lookup[T]) loaded() int {
	n := 0
	for _, e := range l.entries {
		if e.state == stateLoaded {
			n++
		}
	}
	return n
}
