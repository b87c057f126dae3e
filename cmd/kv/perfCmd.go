package kv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logger.GetLogger("store")

	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for a store file",
		Long: util.WrapString(`Runs sequential benchmarks (set, set-large, get, get-missing, has, unset, scan)
against the tied store. All test keys are removed again afterwards.`),
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfTests lists the benchmarks in execution order
var perfTests = []struct {
	name string
	fn   func(b *testing.B, s store.IStore)
}{
	{"set", benchSet},
	{"set-large", benchSetLarge},
	{"get", benchGet},
	{"get-missing", benchGetMissing},
	{"has", benchHas},
	{"unset", benchUnset},
	{"scan", benchScan},
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))

	KeyValueCommands.AddCommand(perfTestCmd)
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = int(math.Max(1, float64(viper.GetInt("keys"))))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Performance testing tool for tKV stores")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Configuration:")
	fmt.Fprintln(out, util.GetTieConfig().String())
	fmt.Fprintf(out, "Keys: %d, large value: %d KB\n\n", perfKeySpread, perfLargeValueSizeKB)

	results := make(map[string]testing.BenchmarkResult)
	for _, test := range perfTests {
		if shouldSkip(test.name) {
			results[test.name] = testing.BenchmarkResult{}
			printResult(out, test.name, results[test.name])
			continue
		}
		fn := test.fn
		results[test.name] = testing.Benchmark(func(b *testing.B) {
			fn(b, tiedStore)
		})
		printResult(out, test.name, results[test.name])
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nresults written to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func benchSet(b *testing.B, s store.IStore) {
	getKey, iter := getKeys("set")
	b.Cleanup(func() { cleanup("set", s, iter) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Set(getKey(i), []byte("test")); err != nil {
			log.Errorf("(set) - error setting key: %v", err)
		}
	}
}

func benchSetLarge(b *testing.B, s store.IStore) {
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	getKey, iter := getKeys("set-large")
	b.Cleanup(func() { cleanup("set-large", s, iter) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Set(getKey(i), largeValue); err != nil {
			log.Errorf("(set-large) - error setting key: %v", err)
		}
	}
}

func benchGet(b *testing.B, s store.IStore) {
	getKey, iter := getKeys("get")
	populate("get", s, iter)
	b.Cleanup(func() { cleanup("get", s, iter) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Get(getKey(i)); err != nil {
			log.Errorf("(get) - error getting key: %v", err)
		}
	}
}

func benchGetMissing(b *testing.B, s store.IStore) {
	getKey, _ := getKeys("get-missing")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Get(getKey(i)); err != nil {
			log.Errorf("(get-missing) - error getting key: %v", err)
		}
	}
}

func benchHas(b *testing.B, s store.IStore) {
	getKey, iter := getKeys("has")
	populate("has", s, iter)
	b.Cleanup(func() { cleanup("has", s, iter) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Has(getKey(i)); err != nil {
			log.Errorf("(has) - error checking key: %v", err)
		}
	}
}

func benchUnset(b *testing.B, s store.IStore) {
	getKey, iter := getKeys("unset")
	populate("unset", s, iter)
	b.Cleanup(func() { cleanup("unset", s, iter) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Unset(getKey(i)); err != nil {
			log.Errorf("(unset) - error deleting key: %v", err)
		}
	}
}

func benchScan(b *testing.B, s store.IStore) {
	_, iter := getKeys("scan")
	populate("scan", s, iter)
	b.Cleanup(func() { cleanup("scan", s, iter) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Scan(func(store.Entry) bool { return true }); err != nil {
			log.Errorf("(scan) - error scanning: %v", err)
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

func populate(test string, s store.IStore, iter func(func(string))) {
	iter(func(k string) {
		if err := s.Set(k, []byte("test")); err != nil {
			log.Errorf("(%s) - error setting key: %v", test, err)
		}
	})
}

func cleanup(test string, s store.IStore, iter func(func(string))) {
	iter(func(k string) {
		if err := s.Unset(k); err != nil {
			log.Errorf("(%s) - error deleting key: %v", test, err)
		}
	})
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(out io.Writer, test string, result testing.BenchmarkResult) {
	if result.N == 0 {
		fmt.Fprintf(out, "%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Fprintf(out, "%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Backend", "File", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	conf := util.GetTieConfig()

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	for _, test := range tests {
		result := results[test]
		var nsPerOp, opsPerSec float64
		skipped := "true"

		if result.N > 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			conf.Backend,
			conf.File,
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
