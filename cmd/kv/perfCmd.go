package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/store"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the configured store",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOps              = 1000
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines issuing operations"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOps = max(viper.GetInt("ops"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is a single perf test. op is called with the index of the operation.
type benchmark struct {
	name    string
	prepare func(ctx context.Context, keys []string) error
	op      func(ctx context.Context, i int, keys []string) error
}

// result holds the measurements of a benchmark
type result struct {
	name     string
	skipped  bool
	errors   int64
	duration time.Duration
	timer    gometrics.Timer
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for tKV")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(session.Config.String())
	fmt.Printf("Threads: %d, Operations: %d, Keys: %d\n", perfNumThreads, perfOps, perfKeySpread)
	fmt.Println()
	fmt.Println("starting tests...")

	a := session.Accessor
	small := []byte("test")
	large := make([]byte, perfLargeValueSizeKB*1024)

	fill := func(ctx context.Context, keys []string) error {
		for _, k := range keys {
			if _, err := store.Set(a, k, small).Await(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	benchmarks := []benchmark{
		{name: "set", op: func(ctx context.Context, i int, keys []string) error {
			_, err := store.Set(a, keys[i%len(keys)], small).Await(ctx)
			return err
		}},
		{name: "set-large", op: func(ctx context.Context, i int, keys []string) error {
			_, err := store.Set(a, keys[i%len(keys)], large).Await(ctx)
			return err
		}},
		{name: "get", prepare: fill, op: func(ctx context.Context, i int, keys []string) error {
			_, err := store.Get(a, keys[i%len(keys)]).Await(ctx)
			return err
		}},
		{name: "delete", prepare: fill, op: func(ctx context.Context, i int, keys []string) error {
			_, err := store.Delete(a, keys[i%len(keys)]).Await(ctx)
			return err
		}},
		{name: "values", prepare: fill, op: func(ctx context.Context, _ int, _ []string) error {
			_, err := store.Values(a).Await(ctx)
			return err
		}},
		{name: "mixed", prepare: fill, op: func(ctx context.Context, i int, keys []string) error {
			key := keys[i%len(keys)]
			var err error
			switch i % 4 {
			case 0:
				_, err = store.Set(a, key, small).Await(ctx)
			case 1:
				_, err = store.Get(a, key).Await(ctx)
			case 2:
				_, err = store.Delete(a, key).Await(ctx)
			case 3:
				_, err = store.Values(a).Await(ctx)
			}
			return err
		}},
	}

	results := make([]result, 0, len(benchmarks))
	for _, bm := range benchmarks {
		r, err := runBenchmark(bm)
		if err != nil {
			return fmt.Errorf("%s: %w", bm.name, err)
		}
		results = append(results, r)
		printResult(r)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBenchmark spreads perfOps operations over perfNumThreads goroutines and
// times every single operation. Failed operations are counted, not fatal.
func runBenchmark(bm benchmark) (result, error) {
	r := result{name: bm.name, timer: gometrics.NewTimer()}
	if slices.Contains(perfSkip, bm.name) {
		r.skipped = true
		return r, nil
	}
	defer r.timer.Stop()

	ctx := context.Background()
	keys := getKeys(bm.name)
	defer cleanup(ctx, keys)

	if bm.prepare != nil {
		if err := bm.prepare(ctx, keys); err != nil {
			return r, err
		}
	}

	errCount := gometrics.NewCounter()
	start := time.Now()
	var g errgroup.Group
	for t := 0; t < perfNumThreads; t++ {
		t := t
		g.Go(func() error {
			for i := t; i < perfOps; i += perfNumThreads {
				opStart := time.Now()
				if err := bm.op(ctx, i, keys); err != nil {
					errCount.Inc(1)
					util.Logger.Warningf("(%s) operation %d failed: %v", bm.name, i, err)
					continue
				}
				r.timer.UpdateSince(opStart)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.duration = time.Since(start)
	r.errors = errCount.Count()
	return r, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// getKeys creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

func cleanup(ctx context.Context, keys []string) {
	for _, k := range keys {
		if _, err := store.Delete(session.Accessor, k).Await(ctx); err != nil {
			util.Logger.Warningf("error deleting key %s: %v", k, err)
		}
	}
}

func opsPerSec(r result) float64 {
	if r.duration <= 0 {
		return 0
	}
	return float64(r.timer.Count()) / r.duration.Seconds()
}

var percentiles = []float64{0.5, 0.95, 0.99}

// printResult prints the result of a benchmark test in a formatted way
func printResult(r result) {
	if r.skipped || r.timer.Count() == 0 {
		fmt.Printf("%-12sskipped\n", r.name)
		return
	}

	p := r.timer.Percentiles(percentiles)
	fmt.Printf("%-12smean %-10s p50 %-10s p95 %-10s p99 %-10s %8.0f ops/sec  %d errors\n",
		r.name,
		time.Duration(r.timer.Mean()).Round(time.Microsecond),
		time.Duration(p[0]).Round(time.Microsecond),
		time.Duration(p[1]).Round(time.Microsecond),
		time.Duration(p[2]).Round(time.Microsecond),
		opsPerSec(r),
		r.errors,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Test", "Skipped", "Ops", "Errors", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "OpsPerSec",
		"Engine", "Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		p := r.timer.Percentiles(percentiles)
		row := []string{
			r.name,
			strconv.FormatBool(r.skipped),
			strconv.FormatInt(r.timer.Count(), 10),
			strconv.FormatInt(r.errors, 10),
			fmt.Sprintf("%.0f", r.timer.Mean()),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			fmt.Sprintf("%.0f", p[2]),
			fmt.Sprintf("%.0f", opsPerSec(r)),
			string(session.Config.Engine),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
