// Command lsmkv is an interactive REPL over an embedded LSM key-value
// store, mirroring the reference mini-lsm CLI's command set.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nyasuto/lsmkv/internal/lsm"
)

var (
	flagPath       string
	flagCompaction string
	flagEnableWAL  bool
)

func main() {
	root := &cobra.Command{
		Use:   "lsmkv",
		Short: "interactive shell over an embedded LSM key-value store",
		RunE:  run,
	}
	root.Flags().StringVar(&flagPath, "path", "lsmkv-data", "data directory")
	root.Flags().StringVar(&flagCompaction, "compaction", "none", "compaction strategy: none|simple|leveled|tiered")
	root.Flags().BoolVar(&flagEnableWAL, "enable-wal", false, "enable write-ahead logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseCompaction(s string) (lsm.CompactionOptions, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return lsm.CompactionOptions{Strategy: lsm.CompactionNone}, nil
	case "simple":
		return lsm.CompactionOptions{Strategy: lsm.CompactionSimple, Simple: lsm.SimpleLeveledOptions{
			SizeRatioPercent: 200, Level0FileNumTrigger: 4, MaxLevels: 4,
		}}, nil
	case "leveled":
		return lsm.CompactionOptions{Strategy: lsm.CompactionLeveled, Leveled: lsm.LeveledOptions{
			LevelSizeMultiplier: 4, Level0FileNumTrigger: 4, MaxLevels: 4, BaseLevelSizeMB: 2,
		}}, nil
	case "tiered":
		return lsm.CompactionOptions{Strategy: lsm.CompactionTiered, Tiered: lsm.TieredOptions{
			NumTiers: 4, MaxSizeAmplification: 200, SizeRatioPercent: 100, MinMergeWidth: 2,
		}}, nil
	default:
		return lsm.CompactionOptions{}, fmt.Errorf("unknown compaction strategy %q", s)
	}
}

func run(cmd *cobra.Command, args []string) error {
	compaction, err := parseCompaction(flagCompaction)
	if err != nil {
		return err
	}

	opts := lsm.DefaultOptions()
	opts.EnableWAL = flagEnableWAL
	opts.Compaction = compaction
	opts.Logger = zap.NewNop()

	engine, err := lsm.Open(flagPath, opts)
	if err != nil {
		return fmt.Errorf("opening %s: %w", flagPath, err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	epoch := 0
	fmt.Println("lsmkv> type 'help' for commands")
	for {
		fmt.Print("lsmkv> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmdName := fields[0]
		rest := fields[1:]

		switch cmdName {
		case "help":
			printHelp()
		case "fill":
			if len(rest) != 2 {
				fmt.Println("usage: fill <start> <end>")
				continue
			}
			handleFill(engine, rest[0], rest[1], epoch)
		case "get":
			if len(rest) != 1 {
				fmt.Println("usage: get <key>")
				continue
			}
			handleGet(engine, rest[0])
		case "del":
			if len(rest) != 1 {
				fmt.Println("usage: del <key>")
				continue
			}
			if err := engine.Delete([]byte(rest[0])); err != nil {
				fmt.Println("error:", err)
			}
		case "scan":
			handleScan(engine, rest)
		case "dump":
			fmt.Print(engine.DumpStructure())
		case "flush":
			if err := engine.ForceFlush(); err != nil {
				fmt.Println("error:", err)
			}
		case "full_compaction":
			if err := engine.ForceFullCompaction(); err != nil {
				fmt.Println("error:", err)
			}
		case "quit", "close":
			if err := engine.Close(); err != nil {
				fmt.Println("error closing:", err)
			}
			return nil
		default:
			fmt.Println("unknown command:", cmdName)
		}
		epoch++
	}
	return engine.Close()
}

func printHelp() {
	fmt.Println(`commands:
  fill <a> <b>     insert keys a..b with generated values
  get <key>        fetch a key
  del <key>        delete a key
  scan [lo hi]     scan the whole store, or [lo, hi] inclusive
  dump             print the current tree structure
  flush            force-flush the oldest immutable memtable
  full_compaction  collapse every SST into the bottom level
  quit | close     shut down and exit`)
}

func handleFill(engine *lsm.Engine, aStr, bStr string, epoch int) {
	a, err1 := strconv.Atoi(aStr)
	b, err2 := strconv.Atoi(bStr)
	if err1 != nil || err2 != nil || a > b {
		fmt.Println("usage: fill <start:int> <end:int>")
		return
	}
	for i := a; i <= b; i++ {
		key := fmt.Sprintf("%d", i)
		value := fmt.Sprintf("value%d@%d", i, epoch)
		if err := engine.Put([]byte(key), []byte(value)); err != nil {
			fmt.Println("error:", err)
			return
		}
	}
	fmt.Printf("%d values filled with epoch %d\n", b-a+1, epoch)
}

func handleGet(engine *lsm.Engine, key string) {
	v, err := engine.Get([]byte(key))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(string(v))
}

func handleScan(engine *lsm.Engine, args []string) {
	lower, upper := lsm.Unbounded(), lsm.Unbounded()
	if len(args) == 2 {
		lower = lsm.Included([]byte(args[0]))
		upper = lsm.Included([]byte(args[1]))
	} else if len(args) != 0 {
		fmt.Println("usage: scan [lo hi]")
		return
	}

	it, err := engine.Scan(lower, upper)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for it.IsValid() {
		fmt.Printf("%s => %s\n", it.Key(), it.Value())
		if err := it.Next(); err != nil {
			fmt.Println("error:", err)
			return
		}
	}
}
