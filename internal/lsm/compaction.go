package lsm

// LevelsSnapshot is the compaction-relevant slice of engine state: L0's
// SST ids (newest first) and the ordered set of levels/tiers below it,
// each a slice of SST ids. Leveled and Simple controllers treat Levels as
// levels (oldest data at the highest index); the Tiered controller treats
// each entry as one sorted run ("tier"), ordered oldest-tier-last.
type LevelsSnapshot struct {
	L0     []uint64
	Levels [][]uint64
}

func (s LevelsSnapshot) clone() LevelsSnapshot {
	out := LevelsSnapshot{L0: append([]uint64{}, s.L0...)}
	for _, lvl := range s.Levels {
		out.Levels = append(out.Levels, append([]uint64{}, lvl...))
	}
	return out
}

// CompactionTask describes one compaction job: merge UpperIDs (from
// UpperLevel, or L0 when UpperLevel is -1) with LowerIDs (from LowerLevel)
// and replace both input sets with the compaction's output.
type CompactionTask struct {
	Kind          string
	UpperLevel    int // -1 means L0
	UpperIDs      []uint64
	LowerLevel    int
	LowerIDs      []uint64
	IsLowerBottom bool
}

// sstSizer answers approximate on-disk size for an SST id, used by
// controllers that trigger on byte thresholds rather than file counts.
type sstSizer func(id uint64) int64

// CompactionController decides when and what to compact, and how to splice
// compaction output back into the level structure. Implementations are
// pure functions of the current snapshot; they never touch the engine's
// lock or filesystem state directly.
type CompactionController interface {
	Name() string
	GenerateTask(snap LevelsSnapshot, size sstSizer) *CompactionTask
	ApplyResult(snap LevelsSnapshot, task *CompactionTask, newIDs []uint64) LevelsSnapshot
	ForceFullCompactionTask(snap LevelsSnapshot) *CompactionTask
}

func removeIDs(ids []uint64, remove []uint64) []uint64 {
	toRemove := make(map[uint64]bool, len(remove))
	for _, id := range remove {
		toRemove[id] = true
	}
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !toRemove[id] {
			out = append(out, id)
		}
	}
	return out
}

// NoneController performs no background compaction; SSTs accumulate in L0
// forever except when a manual full compaction is requested.
type NoneController struct{}

func (NoneController) Name() string { return "none" }

func (NoneController) GenerateTask(snap LevelsSnapshot, size sstSizer) *CompactionTask {
	return nil
}

func (NoneController) ApplyResult(snap LevelsSnapshot, task *CompactionTask, newIDs []uint64) LevelsSnapshot {
	out := snap.clone()
	out.L0 = removeIDs(out.L0, task.UpperIDs)
	out.L0 = removeIDs(out.L0, task.LowerIDs)
	out.L0 = append(append([]uint64{}, newIDs...), out.L0...)
	return out
}

func (NoneController) ForceFullCompactionTask(snap LevelsSnapshot) *CompactionTask {
	if len(snap.L0) == 0 {
		return nil
	}
	return &CompactionTask{Kind: "force_full", UpperLevel: -1, UpperIDs: snap.L0, IsLowerBottom: true}
}
