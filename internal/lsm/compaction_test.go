package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func constSizer(n int64) sstSizer {
	return func(id uint64) int64 { return n }
}

func TestNoneControllerNeverGeneratesBackgroundTasks(t *testing.T) {
	c := NoneController{}
	snap := LevelsSnapshot{L0: []uint64{1, 2, 3}}
	require.Nil(t, c.GenerateTask(snap, constSizer(1)))
}

func TestNoneControllerForceFullCompactsL0(t *testing.T) {
	c := NoneController{}
	snap := LevelsSnapshot{L0: []uint64{3, 2, 1}}
	task := c.ForceFullCompactionTask(snap)
	require.NotNil(t, task)
	require.Equal(t, []uint64{3, 2, 1}, task.UpperIDs)

	out := c.ApplyResult(snap, task, []uint64{10})
	require.Equal(t, []uint64{10}, out.L0)
}

func TestSimpleLeveledTriggersOnL0FileCount(t *testing.T) {
	c := NewSimpleLeveledController(SimpleLeveledOptions{
		Level0FileNumTrigger: 2,
		SizeRatioPercent:     200,
		MaxLevels:            2,
	})
	snap := LevelsSnapshot{L0: []uint64{3, 2, 1}, Levels: [][]uint64{{}, {}}}

	task := c.GenerateTask(snap, constSizer(1))
	require.NotNil(t, task)
	require.Equal(t, -1, task.UpperLevel)
	require.Equal(t, 0, task.LowerLevel)
	require.True(t, task.IsLowerBottom == false)

	out := c.ApplyResult(snap, task, []uint64{100})
	require.Empty(t, out.L0)
	require.Equal(t, []uint64{100}, out.Levels[0])
}

func TestSimpleLeveledTriggersOnSizeRatio(t *testing.T) {
	c := NewSimpleLeveledController(SimpleLeveledOptions{
		Level0FileNumTrigger: 100,
		SizeRatioPercent:     200,
		MaxLevels:            2,
	})
	sizer := func(id uint64) int64 {
		if id == 1 {
			return 100
		}
		return 10 // lower level far smaller than SizeRatioPercent of the upper level
	}
	snap := LevelsSnapshot{Levels: [][]uint64{{1}, {2}}}

	task := c.GenerateTask(snap, sizer)
	require.NotNil(t, task)
	require.Equal(t, 0, task.UpperLevel)
	require.Equal(t, 1, task.LowerLevel)
	require.True(t, task.IsLowerBottom)
}

func TestSimpleLeveledNoTaskWhenBalanced(t *testing.T) {
	c := NewSimpleLeveledController(SimpleLeveledOptions{
		Level0FileNumTrigger: 100,
		SizeRatioPercent:     50,
		MaxLevels:            2,
	})
	snap := LevelsSnapshot{Levels: [][]uint64{{1}, {2}}}
	require.Nil(t, c.GenerateTask(snap, constSizer(10)))
}

func TestLeveledTriggersOnL0AndPicksDynamicBaseLevel(t *testing.T) {
	c := NewLeveledController(LeveledOptions{
		Level0FileNumTrigger: 1,
		LevelSizeMultiplier:  10,
		MaxLevels:            3,
		BaseLevelSizeMB:      1,
	})
	snap := LevelsSnapshot{L0: []uint64{5}, Levels: [][]uint64{{}, {7}, {}}}

	task := c.GenerateTask(snap, constSizer(1))
	require.NotNil(t, task)
	require.Equal(t, -1, task.UpperLevel)
	require.Equal(t, 1, task.LowerLevel) // first non-empty level
}

func TestLeveledTriggersOnLevelOverTarget(t *testing.T) {
	c := NewLeveledController(LeveledOptions{
		Level0FileNumTrigger: 100,
		LevelSizeMultiplier:  10,
		MaxLevels:            3,
		BaseLevelSizeMB:      1,
	})
	big := int64(10) << 20 // well over the level-0-depth target of 1MB
	snap := LevelsSnapshot{Levels: [][]uint64{{1}, {}, {}}}

	task := c.GenerateTask(snap, constSizer(big))
	require.NotNil(t, task)
	require.Equal(t, 0, task.UpperLevel)
	require.Equal(t, 1, task.LowerLevel)
}

func TestTieredMergesAllWhenTooManyTiers(t *testing.T) {
	c := NewTieredController(TieredOptions{
		NumTiers:             2,
		MaxSizeAmplification: 1000,
		SizeRatioPercent:     1000,
		MinMergeWidth:        100,
	})
	snap := LevelsSnapshot{Levels: [][]uint64{{3}, {2}, {1}}}

	task := c.GenerateTask(snap, constSizer(1))
	require.NotNil(t, task)
	require.True(t, task.IsLowerBottom)

	out := c.ApplyResult(snap, task, []uint64{99})
	require.Equal(t, [][]uint64{{99}}, out.Levels)
}

func TestTieredNoTaskWhenWithinBounds(t *testing.T) {
	c := NewTieredController(TieredOptions{
		NumTiers:             10,
		MaxSizeAmplification: 1000,
		SizeRatioPercent:     1000,
		MinMergeWidth:        100,
	})
	snap := LevelsSnapshot{Levels: [][]uint64{{1}, {2}}}
	require.Nil(t, c.GenerateTask(snap, constSizer(1)))
}

func TestTieredForceFullCompactionMergesEverything(t *testing.T) {
	c := NewTieredController(TieredOptions{NumTiers: 10, MaxSizeAmplification: 1000, SizeRatioPercent: 1000, MinMergeWidth: 100})
	snap := LevelsSnapshot{Levels: [][]uint64{{3}, {2}, {1}}}
	task := c.ForceFullCompactionTask(snap)
	require.NotNil(t, task)
	require.Equal(t, 0, task.UpperLevel)
	require.Equal(t, 2, task.LowerLevel)
}
