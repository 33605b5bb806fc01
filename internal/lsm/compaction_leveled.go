package lsm

// LeveledController implements a simplified leveled-compaction policy:
// L0 always compacts into a dynamically chosen base level once it has too
// many files, and any level whose size exceeds its target (base size times
// LevelSizeMultiplier^depth) is compacted entirely into the next level
// down. Unlike the full per-SST-overlap design, the whole source level is
// merged with the whole target level on each trigger.
type LeveledController struct {
	opts LeveledOptions
}

func NewLeveledController(opts LeveledOptions) *LeveledController {
	return &LeveledController{opts: opts}
}

func (c *LeveledController) Name() string { return "leveled" }

func (c *LeveledController) ensureLevels(snap LevelsSnapshot) LevelsSnapshot {
	out := snap.clone()
	for len(out.Levels) < c.opts.MaxLevels {
		out.Levels = append(out.Levels, nil)
	}
	return out
}

func (c *LeveledController) levelSize(ids []uint64, size sstSizer) int64 {
	var total int64
	for _, id := range ids {
		total += size(id)
	}
	return total
}

// baseLevel is the shallowest non-empty level; L0 compacts directly into it.
func (c *LeveledController) baseLevel(snap LevelsSnapshot) int {
	for i, lvl := range snap.Levels {
		if len(lvl) > 0 {
			return i
		}
	}
	return len(snap.Levels) - 1
}

func (c *LeveledController) targetSize(depth int) int64 {
	target := int64(c.opts.BaseLevelSizeMB) << 20
	for i := 0; i < depth; i++ {
		target *= int64(c.opts.LevelSizeMultiplier)
	}
	return target
}

func (c *LeveledController) GenerateTask(snap LevelsSnapshot, size sstSizer) *CompactionTask {
	snap = c.ensureLevels(snap)

	if len(snap.L0) >= c.opts.Level0FileNumTrigger {
		base := c.baseLevel(snap)
		return &CompactionTask{
			Kind:          "leveled",
			UpperLevel:    -1,
			UpperIDs:      append([]uint64{}, snap.L0...),
			LowerLevel:    base,
			LowerIDs:      append([]uint64{}, snap.Levels[base]...),
			IsLowerBottom: base == len(snap.Levels)-1,
		}
	}

	for i := 0; i < len(snap.Levels)-1; i++ {
		if c.levelSize(snap.Levels[i], size) > c.targetSize(i) {
			return &CompactionTask{
				Kind:          "leveled",
				UpperLevel:    i,
				UpperIDs:      append([]uint64{}, snap.Levels[i]...),
				LowerLevel:    i + 1,
				LowerIDs:      append([]uint64{}, snap.Levels[i+1]...),
				IsLowerBottom: i+1 == len(snap.Levels)-1,
			}
		}
	}
	return nil
}

func (c *LeveledController) ApplyResult(snap LevelsSnapshot, task *CompactionTask, newIDs []uint64) LevelsSnapshot {
	out := c.ensureLevels(snap)
	if task.UpperLevel == -1 {
		out.L0 = removeIDs(out.L0, task.UpperIDs)
	} else {
		out.Levels[task.UpperLevel] = removeIDs(out.Levels[task.UpperLevel], task.UpperIDs)
	}
	for i := range out.Levels {
		if i != task.LowerLevel {
			out.Levels[i] = removeIDs(out.Levels[i], task.LowerIDs)
		}
	}
	out.Levels[task.LowerLevel] = append([]uint64{}, newIDs...)
	return out
}

func (c *LeveledController) ForceFullCompactionTask(snap LevelsSnapshot) *CompactionTask {
	snap = c.ensureLevels(snap)
	bottom := len(snap.Levels) - 1
	return &CompactionTask{
		Kind:          "force_full",
		UpperLevel:    -1,
		UpperIDs:      append([]uint64{}, snap.L0...),
		LowerLevel:    bottom,
		LowerIDs:      flattenExcludingLevel0(snap),
		IsLowerBottom: true,
	}
}
