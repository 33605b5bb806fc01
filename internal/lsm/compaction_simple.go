package lsm

// SimpleLeveledController triggers a compaction between L0 and level 1
// once L0 accumulates too many files, and between adjacent levels once the
// size ratio between them crosses a configured percentage, mirroring the
// size-ratio logic of the original SimpleLeveledCompactionOptions design.
type SimpleLeveledController struct {
	opts SimpleLeveledOptions
}

func NewSimpleLeveledController(opts SimpleLeveledOptions) *SimpleLeveledController {
	return &SimpleLeveledController{opts: opts}
}

func (c *SimpleLeveledController) Name() string { return "simple_leveled" }

func (c *SimpleLeveledController) levelSize(ids []uint64, size sstSizer) int64 {
	var total int64
	for _, id := range ids {
		total += size(id)
	}
	return total
}

func (c *SimpleLeveledController) ensureLevels(snap LevelsSnapshot) LevelsSnapshot {
	out := snap.clone()
	for len(out.Levels) < c.opts.MaxLevels {
		out.Levels = append(out.Levels, nil)
	}
	return out
}

func (c *SimpleLeveledController) GenerateTask(snap LevelsSnapshot, size sstSizer) *CompactionTask {
	snap = c.ensureLevels(snap)

	if len(snap.L0) >= c.opts.Level0FileNumTrigger && len(snap.Levels) > 0 {
		return &CompactionTask{
			Kind:          "simple",
			UpperLevel:    -1,
			UpperIDs:      append([]uint64{}, snap.L0...),
			LowerLevel:    0,
			LowerIDs:      append([]uint64{}, snap.Levels[0]...),
			IsLowerBottom: len(snap.Levels) == 1,
		}
	}

	for i := 0; i+1 < len(snap.Levels); i++ {
		upper := snap.Levels[i]
		lower := snap.Levels[i+1]
		if len(upper) == 0 {
			continue
		}
		upperSize := c.levelSize(upper, size)
		lowerSize := c.levelSize(lower, size)
		ratio := 100
		if upperSize > 0 {
			ratio = int(lowerSize * 100 / upperSize)
		}
		if ratio < c.opts.SizeRatioPercent {
			return &CompactionTask{
				Kind:          "simple",
				UpperLevel:    i,
				UpperIDs:      append([]uint64{}, upper...),
				LowerLevel:    i + 1,
				LowerIDs:      append([]uint64{}, lower...),
				IsLowerBottom: i+1 == len(snap.Levels)-1,
			}
		}
	}
	return nil
}

func (c *SimpleLeveledController) ApplyResult(snap LevelsSnapshot, task *CompactionTask, newIDs []uint64) LevelsSnapshot {
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

func (c *SimpleLeveledController) ForceFullCompactionTask(snap LevelsSnapshot) *CompactionTask {
	snap = c.ensureLevels(snap)
	var all []uint64
	all = append(all, snap.L0...)
	for _, lvl := range snap.Levels {
		all = append(all, lvl...)
	}
	if len(all) == 0 {
		return nil
	}
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

func flattenExcludingLevel0(snap LevelsSnapshot) []uint64 {
	var ids []uint64
	for _, lvl := range snap.Levels {
		ids = append(ids, lvl...)
	}
	return ids
}
