// Benchmark report tool for hostwatch.
//
// Runs the classification, feature, SMART and storage benchmarks one target
// at a time, then writes a summary table plus the raw output to
// target/reports/bench.txt. Exits non-zero if any benchmark fails.
//
// Usage:
//
//	go run ./scripts/bench
//	BENCH_TIME=10s go run ./scripts/bench
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type benchTarget struct {
	Function string
	Package  string
	// Budget is the per-op time above which the summary flags the result.
	Budget time.Duration
}

var benchTargets = []benchTarget{
	// Request path: vector in, prediction out
	{Function: "BenchmarkClassify", Package: "./internal/inference/", Budget: time.Millisecond},
	{Function: "BenchmarkBuild", Package: "./internal/features/", Budget: 10 * time.Microsecond},
	// SMART health
	{Function: "BenchmarkEvaluateAttribute", Package: "./internal/smart/", Budget: 10 * time.Microsecond},
	{Function: "BenchmarkEvaluateDisk", Package: "./internal/smart/", Budget: 100 * time.Microsecond},
	// Prediction history
	{Function: "BenchmarkInsertPrediction", Package: "./internal/store/", Budget: 5 * time.Millisecond},
}

type benchResult struct {
	Target      benchTarget
	Runs        []benchLine
	Passed      bool
	OverBudget  bool
	Output      string
	RunDuration time.Duration
}

// benchLine is one result line, e.g.
// "BenchmarkClassify/cpu_overload-8  500000  2400 ns/op  512 B/op  9 allocs/op".
type benchLine struct {
	Name     string
	NsPerOp  float64
	BPerOp   string
	AllocsOp string
}

var reBenchLine = regexp.MustCompile(`^(Benchmark\S+)\s+\d+\s+([\d.]+) ns/op(?:\s+(\d+) B/op)?(?:\s+(\d+) allocs/op)?`)

func main() {
	projectRoot := findProjectRoot()
	reportDir := filepath.Join(projectRoot, "target", "reports")

	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("creating report directory: %v", err)
	}

	benchTime := os.Getenv("BENCH_TIME")
	if benchTime == "" {
		benchTime = "3s"
	}

	now := time.Now()
	goVer := captureGoVersion()

	fmt.Printf("Running %d benchmarks (benchtime=%s)...\n\n", len(benchTargets), benchTime)

	results := make([]benchResult, 0, len(benchTargets))
	failed := 0
	for _, tgt := range benchTargets {
		res := runTarget(projectRoot, tgt, benchTime)
		if !res.Passed {
			failed++
		}
		results = append(results, res)
	}

	var report strings.Builder
	sep := strings.Repeat("=", 72)
	report.WriteString("hostwatch Benchmark Report\n")
	report.WriteString(sep + "\n")
	fmt.Fprintf(&report, "Generated:      %s\n", now.Format(time.RFC1123))
	fmt.Fprintf(&report, "Go Version:     %s\n", goVer)
	fmt.Fprintf(&report, "OS/Arch:        %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&report, "Benchmark Time: %s per benchmark\n", benchTime)
	report.WriteString(sep + "\n\n")

	fmt.Fprintf(&report, "%-44s %14s %10s %10s  %s\n", "Benchmark", "ns/op", "B/op", "allocs/op", "Status")
	report.WriteString(strings.Repeat("-", 92) + "\n")
	for _, res := range results {
		if len(res.Runs) == 0 {
			fmt.Fprintf(&report, "%-44s %14s %10s %10s  %s\n", res.Target.Function, "-", "-", "-", status(res))
			continue
		}
		for _, l := range res.Runs {
			fmt.Fprintf(&report, "%-44s %14.0f %10s %10s  %s\n", l.Name, l.NsPerOp, l.BPerOp, l.AllocsOp, status(res))
		}
	}
	report.WriteString("\n")

	for _, res := range results {
		fmt.Fprintf(&report, "%s\n--- %s (%s, %s)\n%s\n", sep, res.Target.Function, res.Target.Package,
			res.RunDuration.Round(time.Millisecond), res.Output)
	}

	reportPath := filepath.Join(reportDir, "bench.txt")
	if err := os.WriteFile(reportPath, []byte(report.String()), 0o644); err != nil {
		log.Fatalf("writing bench report: %v", err)
	}
	fmt.Printf("\nBenchmark report: %s\n", reportPath)

	if failed > 0 {
		fmt.Printf("%d benchmark(s) failed.\n", failed)
		os.Exit(1)
	}
	fmt.Println("Benchmark run complete.")
}

func runTarget(projectRoot string, tgt benchTarget, benchTime string) benchResult {
	fmt.Printf("=== %s (%s)\n", tgt.Function, tgt.Package)

	cmd := exec.Command("go", "test",
		"-run=^$",
		fmt.Sprintf("-bench=^%s$", tgt.Function),
		"-benchmem",
		fmt.Sprintf("-benchtime=%s", benchTime),
		tgt.Package,
	)
	cmd.Dir = projectRoot

	var buf bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
	cmd.Stderr = io.MultiWriter(os.Stderr, &buf)

	start := time.Now()
	err := cmd.Run()
	res := benchResult{
		Target:      tgt,
		Passed:      err == nil,
		Output:      buf.String(),
		RunDuration: time.Since(start),
	}
	res.Runs = parseBenchLines(res.Output)
	if len(res.Runs) == 0 {
		// A renamed or deleted benchmark matches nothing and still exits 0.
		res.Passed = false
	}
	for _, l := range res.Runs {
		if tgt.Budget > 0 && time.Duration(l.NsPerOp) > tgt.Budget {
			res.OverBudget = true
		}
	}
	return res
}

func parseBenchLines(out string) []benchLine {
	var lines []benchLine
	for line := range strings.SplitSeq(out, "\n") {
		m := reBenchLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		ns, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		l := benchLine{Name: m[1], NsPerOp: ns, BPerOp: m[3], AllocsOp: m[4]}
		if l.BPerOp == "" {
			l.BPerOp = "-"
		}
		if l.AllocsOp == "" {
			l.AllocsOp = "-"
		}
		lines = append(lines, l)
	}
	return lines
}

func status(res benchResult) string {
	switch {
	case !res.Passed:
		return "FAIL"
	case res.OverBudget:
		return "SLOW (budget " + res.Target.Budget.String() + ")"
	default:
		return "ok"
	}
}

func captureGoVersion() string {
	out, err := exec.Command("go", "version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func findProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		log.Fatal("could not determine script directory")
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			log.Fatal("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
