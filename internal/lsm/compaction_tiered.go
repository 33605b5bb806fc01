package lsm

// TieredController treats each entry of Levels as one sorted run ("tier"),
// newest tier first, and merges tiers together once one of three triggers
// fires: too many sorted runs to scan on a read, space amplification from
// tombstones/overwrites piling up in older tiers, or a size-ratio
// imbalance between consecutive tiers. L0-flushed SSTs become a new tier
// directly (handled by the engine, not this controller); this controller
// only ever merges existing tiers together.
type TieredController struct {
	opts TieredOptions
}

func NewTieredController(opts TieredOptions) *TieredController {
	return &TieredController{opts: opts}
}

func (c *TieredController) Name() string { return "tiered" }

func (c *TieredController) tierSize(tier []uint64, size sstSizer) int64 {
	var total int64
	for _, id := range tier {
		total += size(id)
	}
	return total
}

func (c *TieredController) GenerateTask(snap LevelsSnapshot, size sstSizer) *CompactionTask {
	if len(snap.Levels) == 0 {
		return nil
	}

	if len(snap.Levels) > c.opts.NumTiers {
		return c.mergeAllTiers(snap)
	}

	// Space amplification: compare everything but the oldest (bottom) tier
	// against the bottom tier's size.
	if len(snap.Levels) >= 2 {
		var aboveBottom int64
		for _, tier := range snap.Levels[:len(snap.Levels)-1] {
			aboveBottom += c.tierSize(tier, size)
		}
		bottom := c.tierSize(snap.Levels[len(snap.Levels)-1], size)
		if bottom > 0 && int(aboveBottom*100/bottom) >= c.opts.MaxSizeAmplification {
			return c.mergeAllTiers(snap)
		}
	}

	// Size ratio: merge a growing prefix of tiers once the next tier is not
	// meaningfully larger than everything merged so far.
	if len(snap.Levels) >= c.opts.MinMergeWidth {
		var cumulative int64
		for i := 0; i < len(snap.Levels)-1; i++ {
			cumulative += c.tierSize(snap.Levels[i], size)
			next := c.tierSize(snap.Levels[i+1], size)
			if next == 0 {
				continue
			}
			if int(cumulative*100/next) >= c.opts.SizeRatioPercent && i+1 >= c.opts.MinMergeWidth-1 {
				return c.mergeTiers(snap, 0, i+1)
			}
		}
	}
	return nil
}

func (c *TieredController) mergeAllTiers(snap LevelsSnapshot) *CompactionTask {
	return c.mergeTiers(snap, 0, len(snap.Levels)-1)
}

// mergeTiers merges tiers [from, to] (inclusive) into a single new tier.
func (c *TieredController) mergeTiers(snap LevelsSnapshot, from, to int) *CompactionTask {
	var upper, lower []uint64
	upper = append(upper, snap.Levels[from]...)
	for i := from + 1; i <= to; i++ {
		lower = append(lower, snap.Levels[i]...)
	}
	return &CompactionTask{
		Kind:          "tiered",
		UpperLevel:    from,
		UpperIDs:      upper,
		LowerLevel:    to,
		LowerIDs:      lower,
		IsLowerBottom: to == len(snap.Levels)-1,
	}
}

func (c *TieredController) ApplyResult(snap LevelsSnapshot, task *CompactionTask, newIDs []uint64) LevelsSnapshot {
	out := snap.clone()
	keep := append([][]uint64{}, out.Levels[:task.UpperLevel]...)
	keep = append(keep, append([]uint64{}, newIDs...))
	if task.LowerLevel+1 < len(out.Levels) {
		keep = append(keep, out.Levels[task.LowerLevel+1:]...)
	}
	out.Levels = keep
	return out
}

func (c *TieredController) ForceFullCompactionTask(snap LevelsSnapshot) *CompactionTask {
	if len(snap.Levels) == 0 {
		return nil
	}
	return c.mergeAllTiers(snap)
}
