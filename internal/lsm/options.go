package lsm

import "go.uber.org/zap"

// CompactionStrategy selects which controller governs how SSTables below
// the memtable cascade are organized and merged.
type CompactionStrategy int

const (
	CompactionNone CompactionStrategy = iota
	CompactionSimple
	CompactionLeveled
	CompactionTiered
)

func (s CompactionStrategy) String() string {
	switch s {
	case CompactionNone:
		return "none"
	case CompactionSimple:
		return "simple"
	case CompactionLeveled:
		return "leveled"
	case CompactionTiered:
		return "tiered"
	default:
		return "unknown"
	}
}

// SimpleLeveledOptions configures the size-ratio triggered controller.
type SimpleLeveledOptions struct {
	SizeRatioPercent     int
	Level0FileNumTrigger int
	MaxLevels            int
}

// LeveledOptions configures the dynamic-base-level controller.
type LeveledOptions struct {
	LevelSizeMultiplier  int
	Level0FileNumTrigger int
	MaxLevels            int
	BaseLevelSizeMB      int
}

// TieredOptions configures the sorted-run controller.
type TieredOptions struct {
	NumTiers               int
	MaxSizeAmplification   int
	SizeRatioPercent       int
	MinMergeWidth          int
}

// CompactionOptions is a tagged union mirroring the Rust CompactionOptions
// enum: exactly one of the sub-structs is meaningful, selected by Strategy.
type CompactionOptions struct {
	Strategy CompactionStrategy
	Simple   SimpleLeveledOptions
	Leveled  LeveledOptions
	Tiered   TieredOptions
}

// Options configures an Engine instance.
type Options struct {
	BlockSize         int
	TargetSSTSize     uint64
	NumMemtableLimit  int
	EnableWAL         bool
	Compaction        CompactionOptions
	BlockCacheEntries int
	Logger            *zap.Logger
}

// DefaultOptions returns sane defaults matching the original reference
// implementation's defaults, with the None compaction strategy.
func DefaultOptions() Options {
	return Options{
		BlockSize:         4096,
		TargetSSTSize:     2 << 20,
		NumMemtableLimit:  2,
		EnableWAL:         false,
		Compaction:        CompactionOptions{Strategy: CompactionNone},
		BlockCacheEntries: 1024,
		Logger:            zap.NewNop(),
	}
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
