package lsm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine is the public embedded key-value store: a single-directory,
// single-process LSM tree with a memtable/immutable-memtable cascade, L0
// SSTs, and a pluggable compaction controller below them.
type Engine struct {
	mu        sync.RWMutex // guards the state pointer swap
	state     *storageState
	stateLock sync.Mutex // serializes freeze/flush/compaction transitions

	path       string
	opts       Options
	controller CompactionController
	cache      *blockCache
	logger     *zap.Logger

	nextSSTID atomic.Uint64
	closed    atomic.Bool

	bg     *errgroup.Group
	bgStop context.CancelFunc
}

// Open creates or re-opens an engine rooted at path. Crash recovery from an
// existing directory's WAL/manifest is not performed; Open always starts
// from an empty in-memory state, with id allocation continuing past any
// *.sst files already on disk so they are never overwritten.
func Open(path string, opts Options) (*Engine, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("lsmkv: open: %w", err)
	}

	e := &Engine{
		path:   path,
		opts:   opts,
		logger: opts.logger(),
		cache:  newBlockCache(opts.BlockCacheEntries),
	}
	e.controller = newController(opts.Compaction)

	existingMax, err := highestExistingSSTID(path)
	if err != nil {
		return nil, err
	}
	e.nextSSTID.Store(existingMax + 1)

	mt, err := e.newMemtable()
	if err != nil {
		return nil, err
	}
	e.state = newStorageState(mt)

	ctx, cancel := context.WithCancel(context.Background())
	e.bgStop = cancel
	g, ctx := errgroup.WithContext(ctx)
	e.bg = g
	g.Go(func() error { return e.flushLoop(ctx) })
	g.Go(func() error { return e.compactionLoop(ctx) })

	return e, nil
}

func newController(opts CompactionOptions) CompactionController {
	switch opts.Strategy {
	case CompactionSimple:
		return NewSimpleLeveledController(opts.Simple)
	case CompactionLeveled:
		return NewLeveledController(opts.Leveled)
	case CompactionTiered:
		return NewTieredController(opts.Tiered)
	default:
		return NoneController{}
	}
}

func highestExistingSSTID(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, e := range entries {
		var id uint64
		if _, err := fmt.Sscanf(e.Name(), "%05d.sst", &id); err == nil && id > max {
			max = id
		}
	}
	return max, nil
}

func (e *Engine) sstPath(id uint64) string {
	return filepath.Join(e.path, fmt.Sprintf("%05d.sst", id))
}

func (e *Engine) walPath(id uint64) string {
	return filepath.Join(e.path, fmt.Sprintf("%05d.wal", id))
}

func (e *Engine) newMemtable() (*MemTable, error) {
	id := e.nextSSTID.Add(1) - 1
	if !e.opts.EnableWAL {
		return NewMemTable(id), nil
	}
	w, err := createWAL(e.walPath(id))
	if err != nil {
		return nil, err
	}
	return NewMemTableWithWAL(id, w), nil
}

func (e *Engine) snapshot() *storageState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Put inserts or overwrites key's value. value must be non-empty: an empty
// value is reserved as the tombstone sentinel written internally by Delete.
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(value) == 0 {
		return ErrEmptyValue
	}
	return e.write(key, value)
}

// Delete writes a tombstone for key. It is not an error to delete a
// nonexistent key.
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return e.write(key, nil)
}

func (e *Engine) write(key, value []byte) error {
	// Hold the read lock across the insert so a concurrent freeze cannot
	// swap mt out (and later flush it) while this write is still landing.
	e.mu.RLock()
	mt := e.state.memtable
	err := mt.Put(key, value)
	e.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("lsmkv: write: %w", err)
	}
	if mt.ApproximateSize() >= int(e.opts.TargetSSTSize) {
		if err := e.tryFreeze(mt); err != nil {
			return err
		}
	}
	return nil
}

// tryFreeze rotates mt out of the active slot if it is still the current
// memtable and is still over threshold, then enforces the
// num_memtable_limit back-pressure policy by forcing a synchronous flush.
func (e *Engine) tryFreeze(mt *MemTable) error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	if e.snapshot().memtable != mt || mt.ApproximateSize() < int(e.opts.TargetSSTSize) {
		return nil
	}
	if err := e.forceFreezeMemtableLocked(); err != nil {
		return err
	}
	for len(e.snapshot().immMemtables) >= e.opts.NumMemtableLimit {
		if err := e.forceFlushNextImmMemtableLocked(); err != nil {
			return err
		}
	}
	return nil
}

// forceFreezeMemtableLocked must be called with stateLock held. It swaps
// the active memtable for a fresh one, pushing the old one onto the
// immutable stack.
func (e *Engine) forceFreezeMemtableLocked() error {
	newMT, err := e.newMemtable()
	if err != nil {
		return err
	}
	e.mu.Lock()
	old := e.state.memtable
	next := e.state.clone()
	next.memtable = newMT
	next.immMemtables = append([]*MemTable{old}, next.immMemtables...)
	e.state = next
	e.mu.Unlock()
	e.logger.Debug("froze memtable", zap.Uint64("id", old.ID()))
	return nil
}

// ForceFreezeMemtable freezes the active memtable regardless of size, for
// callers such as test harnesses that need deterministic generation
// boundaries.
func (e *Engine) ForceFreezeMemtable() error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()
	return e.forceFreezeMemtableLocked()
}

// forceFlushNextImmMemtableLocked must be called with stateLock held. It
// flushes the oldest immutable memtable to a new L0 SST.
func (e *Engine) forceFlushNextImmMemtableLocked() error {
	snap := e.snapshot()
	if len(snap.immMemtables) == 0 {
		return nil
	}
	oldest := snap.immMemtables[len(snap.immMemtables)-1]

	builder := NewSSTableBuilder(e.opts.BlockSize)
	it := oldest.NewIterator(Unbounded(), Unbounded())
	for it.IsValid() {
		builder.Add(it.Key(), it.Value())
		if err := it.Next(); err != nil {
			return err
		}
	}

	id := oldest.ID()
	sst, err := builder.Finish(id, e.sstPath(id), 10)
	if err != nil {
		return fmt.Errorf("lsmkv: flush: %w", err)
	}
	sst.cache = e.cache

	e.mu.Lock()
	next := e.state.clone()
	next.immMemtables = next.immMemtables[:len(next.immMemtables)-1]
	if e.controller.Name() == "tiered" {
		// Tiered compaction has no L0 concept: a flushed memtable becomes
		// its own new sorted run (tier) directly.
		next.levels = append([][]uint64{{id}}, next.levels...)
	} else {
		next.l0 = append([]uint64{id}, next.l0...)
	}
	next.sstables[id] = sst
	e.state = next
	e.mu.Unlock()

	e.logger.Info("flushed memtable", zap.Uint64("id", id))
	return nil
}

// ForceFlush flushes the oldest immutable memtable synchronously, matching
// the CLI's "flush" command.
func (e *Engine) ForceFlush() error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()
	return e.forceFlushNextImmMemtableLocked()
}

func (e *Engine) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.stateLock.Lock()
			if len(e.snapshot().immMemtables) > 0 {
				if err := e.forceFlushNextImmMemtableLocked(); err != nil {
					e.logger.Warn("background flush failed", zap.Error(err))
				}
			}
			e.stateLock.Unlock()
		}
	}
}

// Get looks up key, searching the active memtable, then the immutable
// memtables newest to oldest, then L0 (newest to oldest, Bloom-gated),
// then the deeper levels/tiers.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	snap := e.snapshot()

	if v, ok := snap.memtable.Get(key); ok {
		return tombstoneToNotFound(v)
	}
	for _, imm := range snap.immMemtables {
		if v, ok := imm.Get(key); ok {
			return tombstoneToNotFound(v)
		}
	}
	for _, id := range snap.l0 {
		sst := snap.sstables[id]
		if !sst.MightContain(key) {
			continue
		}
		v, found, err := lookupInSST(sst, key)
		if err != nil {
			return nil, err
		}
		if found {
			return tombstoneToNotFound(v)
		}
	}
	for _, level := range snap.levels {
		id, ok := findSSTForKey(snap, level, key)
		if !ok {
			continue
		}
		sst := snap.sstables[id]
		if !sst.MightContain(key) {
			continue
		}
		v, found, err := lookupInSST(sst, key)
		if err != nil {
			return nil, err
		}
		if found {
			return tombstoneToNotFound(v)
		}
	}
	return nil, ErrKeyNotFound
}

func tombstoneToNotFound(v []byte) ([]byte, error) {
	if len(v) == 0 {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func lookupInSST(sst *SSTable, key []byte) ([]byte, bool, error) {
	it, err := NewSSTableIteratorSeek(sst, key)
	if err != nil {
		return nil, false, err
	}
	if it.IsValid() && bytes.Equal(it.Key(), key) {
		return it.Value(), true, nil
	}
	return nil, false, nil
}

// findSSTForKey scans a non-overlapping level's SST ids for the one whose
// range could contain key.
func findSSTForKey(snap *storageState, level []uint64, key []byte) (uint64, bool) {
	for _, id := range level {
		sst := snap.sstables[id]
		if keyWithin(key, sst.FirstKey(), sst.LastKey()) {
			return id, true
		}
	}
	return 0, false
}

// Scan returns an iterator over [lower, upper] in ascending key order, with
// tombstones already filtered out. Each bound may be Unbounded, Included,
// or Excluded independently.
func (e *Engine) Scan(lower, upper Bound) (*FusedIterator, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	snap := e.snapshot()

	memIters := []StorageIterator{snap.memtable.NewIterator(lower, upper)}
	for _, imm := range snap.immMemtables {
		memIters = append(memIters, imm.NewIterator(lower, upper))
	}
	memMerge := NewMergeIterator(memIters)

	var l0Iters []StorageIterator
	for _, id := range snap.l0 {
		sst := snap.sstables[id]
		if !rangeOverlap(lower, upper, sst.FirstKey(), sst.LastKey()) {
			continue
		}
		it, err := newBoundedSSTIterator(sst, lower)
		if err != nil {
			return nil, err
		}
		l0Iters = append(l0Iters, it)
	}
	l0Merge := NewMergeIterator(l0Iters)

	var levelIters []StorageIterator
	for _, level := range snap.levels {
		var perLevel []StorageIterator
		for _, id := range level {
			sst := snap.sstables[id]
			if !rangeOverlap(lower, upper, sst.FirstKey(), sst.LastKey()) {
				continue
			}
			it, err := newBoundedSSTIterator(sst, lower)
			if err != nil {
				return nil, err
			}
			perLevel = append(perLevel, it)
		}
		if len(perLevel) > 0 {
			levelIters = append(levelIters, NewMergeIterator(perLevel))
		}
	}
	levelsMerge := NewMergeIterator(levelIters)

	sstSide, err := NewTwoMergeIterator(l0Merge, levelsMerge)
	if err != nil {
		return nil, err
	}
	combined, err := NewTwoMergeIterator(memMerge, sstSide)
	if err != nil {
		return nil, err
	}
	lsmIt, err := NewLsmIterator(combined, upper)
	if err != nil {
		return nil, err
	}
	return NewFusedIterator(lsmIt), nil
}

// newBoundedSSTIterator seeks to the first entry satisfying lower: inclusive
// seeks to the first key >= lower; exclusive seeks there too and then
// advances once if the landed key equals lower exactly; unbounded seeks to
// the first entry in the SST.
func newBoundedSSTIterator(sst *SSTable, lower Bound) (*SSTableIterator, error) {
	switch lower.Kind {
	case BoundUnbounded:
		return NewSSTableIterator(sst)
	case BoundIncluded:
		return NewSSTableIteratorSeek(sst, lower.Key)
	default: // BoundExcluded
		it, err := NewSSTableIteratorSeek(sst, lower.Key)
		if err != nil {
			return nil, err
		}
		if it.IsValid() && bytes.Equal(it.Key(), lower.Key) {
			if err := it.Next(); err != nil {
				return nil, err
			}
		}
		return it, nil
	}
}

func (e *Engine) compactionLoop(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.stateLock.Lock()
			if err := e.runOneCompactionLocked(); err != nil {
				e.logger.Warn("background compaction failed", zap.Error(err))
			}
			e.stateLock.Unlock()
		}
	}
}

func (e *Engine) sstSizer() sstSizer {
	snap := e.snapshot()
	return func(id uint64) int64 {
		if sst, ok := snap.sstables[id]; ok {
			return sst.FileSize()
		}
		return 0
	}
}

// runOneCompactionLocked must be called with stateLock held.
func (e *Engine) runOneCompactionLocked() error {
	snap := e.snapshot()
	task := e.controller.GenerateTask(snap.snapshot(), e.sstSizer())
	if task == nil {
		return nil
	}
	return e.applyCompactionTaskLocked(task)
}

// ForceFullCompaction collapses every SST below the memtable cascade into
// the bottom level/a single tier, regardless of the configured controller's
// normal triggers.
func (e *Engine) ForceFullCompaction() error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()
	snap := e.snapshot()
	task := e.controller.ForceFullCompactionTask(snap.snapshot())
	if task == nil {
		return nil
	}
	return e.applyCompactionTaskLocked(task)
}

func (e *Engine) applyCompactionTaskLocked(task *CompactionTask) error {
	snap := e.snapshot()

	var srcIters []StorageIterator
	for _, id := range task.UpperIDs {
		it, err := NewSSTableIterator(snap.sstables[id])
		if err != nil {
			return err
		}
		srcIters = append(srcIters, it)
	}
	var lowerIters []StorageIterator
	for _, id := range task.LowerIDs {
		it, err := NewSSTableIterator(snap.sstables[id])
		if err != nil {
			return err
		}
		lowerIters = append(lowerIters, it)
	}
	merged := NewMergeIterator(append(srcIters, NewMergeIterator(lowerIters)))

	var newIDs []uint64
	builder := NewSSTableBuilder(e.opts.BlockSize)
	for merged.IsValid() {
		if task.IsLowerBottom && len(merged.Value()) == 0 {
			// Tombstones below the bottom level can never shadow anything
			// older, so they are dropped instead of carried forward.
			if err := merged.Next(); err != nil {
				return err
			}
			continue
		}
		builder.Add(merged.Key(), merged.Value())
		if builder.EstimatedSize() >= int(e.opts.TargetSSTSize) {
			id := e.nextSSTID.Add(1) - 1
			sst, err := builder.Finish(id, e.sstPath(id), 10)
			if err != nil {
				return err
			}
			sst.cache = e.cache
			e.registerNewSST(id, sst)
			newIDs = append(newIDs, id)
			builder = NewSSTableBuilder(e.opts.BlockSize)
		}
		if err := merged.Next(); err != nil {
			return err
		}
	}
	if !builder.IsEmpty() {
		id := e.nextSSTID.Add(1) - 1
		sst, err := builder.Finish(id, e.sstPath(id), 10)
		if err != nil {
			return err
		}
		sst.cache = e.cache
		e.registerNewSST(id, sst)
		newIDs = append(newIDs, id)
	}

	newLevels := e.controller.ApplyResult(snap.snapshot(), task, newIDs)

	removed := append(append([]uint64{}, task.UpperIDs...), task.LowerIDs...)
	e.mu.Lock()
	next := e.state.clone()
	next.l0 = newLevels.L0
	next.levels = newLevels.Levels
	for _, id := range removed {
		delete(next.sstables, id)
	}
	e.state = next
	e.mu.Unlock()

	for _, id := range removed {
		_ = os.Remove(e.sstPath(id))
	}
	e.logger.Info("compaction complete", zap.String("kind", task.Kind),
		zap.Int("inputs", len(removed)), zap.Int("outputs", len(newIDs)))
	return nil
}

// registerNewSST makes a freshly built SST visible for compaction input
// lookups mid-task (the level swap itself happens once at the end).
func (e *Engine) registerNewSST(id uint64, sst *SSTable) {
	e.mu.Lock()
	next := e.state.clone()
	next.sstables[id] = sst
	e.state = next
	e.mu.Unlock()
}

// DumpStructure returns a human-readable summary of the current tree shape:
// the active memtable id, the immutable memtable count, L0 ids, and
// per-level/tier SST id lists.
func (e *Engine) DumpStructure() string {
	snap := e.snapshot()
	s := fmt.Sprintf("memtable: active=%d imm=%d\nL0: %v\n", snap.memtable.ID(), len(snap.immMemtables), snap.l0)
	for i, lvl := range snap.levels {
		s += fmt.Sprintf("level %d: %v\n", i, lvl)
	}
	return s
}

// Close stops accepting writes, shuts down background flush/compaction
// goroutines, performs a final synchronous flush of any unflushed data,
// and fsyncs the data directory.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.bgStop()
	if err := e.bg.Wait(); err != nil {
		e.logger.Warn("background worker exited with error", zap.Error(err))
	}

	e.stateLock.Lock()
	if e.snapshot().memtable.ApproximateSize() > 0 {
		if err := e.forceFreezeMemtableLocked(); err != nil {
			e.stateLock.Unlock()
			return err
		}
	}
	for len(e.snapshot().immMemtables) > 0 {
		if err := e.forceFlushNextImmMemtableLocked(); err != nil {
			e.stateLock.Unlock()
			return err
		}
	}
	e.stateLock.Unlock()

	dir, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}
