package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/limaJavier/placement/pkg/model"

	"github.com/samber/lo"
)

const (
	executablePath         = "../../bin/placement"
	testDirectory          = "../../test/out/random/"
	seed                   = 42
	timeout                = "5m"
	MB             float32 = 1024 * 1024
)

type SolverType int

const (
	simplex SolverType = iota
	pseudoboolean
	glpk
)

type ResultType int

const (
	solved ResultType = iota
	unsolved
)

var (
	solverTypes = map[SolverType]string{
		simplex:       "simplex",
		pseudoboolean: "pseudoboolean",
		glpk:          "glpk",
	}
	resultTypes = map[ResultType]string{
		solved:   "solved",
		unsolved: "unsolved",
	}
)

type TestMetadata struct {
	Name     string
	Pupils   int
	Classes  int
	Wishes   int
	Capacity int64
}

type BenchmarkResult struct {
	Solver        SolverType
	Test          TestMetadata
	Duration      int64
	Memory        float32
	CpuPercentage int64
	Result        ResultType
}

func main() {
	tests := getTests()
	solvers := getSolvers()
	results := make([]BenchmarkResult, 0, len(tests)*len(solvers))

	for _, test := range tests {
		for _, solver := range solvers {
			fmt.Printf("Benchmarking test \"%v\" with solver \"%v\"\n", test.Name, solverTypes[solver])

			duration, maxMemory, cpuPercentage, result := measure(solver, test.Name)

			results = append(results, BenchmarkResult{
				Solver:        solver,
				Test:          test,
				Duration:      duration,
				Memory:        maxMemory,
				CpuPercentage: cpuPercentage,
				Result:        result,
			})
		}
	}

	toCsv(results)
}

// getTests writes one random instance per size into testDirectory
func getTests() []TestMetadata {
	if err := os.MkdirAll(testDirectory, 0o755); err != nil {
		log.Fatalf("cannot create directory: %v", err)
	}

	random := rand.New(rand.NewSource(seed))
	tests := make([]TestMetadata, 0)
	for _, size := range []struct{ pupils, classes int }{
		{20, 2},
		{50, 3},
		{100, 4},
		{200, 6},
		{400, 8},
	} {
		input := generateInput(random, size.pupils, size.classes)
		filename := filepath.Join(testDirectory, fmt.Sprintf("random_%d_%d.json", size.pupils, size.classes))

		content, err := json.Marshal(input)
		if err != nil {
			log.Fatalf("cannot encode input: %v", err)
		}
		if err := os.WriteFile(filename, content, 0o644); err != nil {
			log.Fatalf("cannot write input file: %v", err)
		}

		tests = append(tests, TestMetadata{
			Name:     filename,
			Pupils:   len(input.Pupils),
			Classes:  len(input.Classes),
			Wishes:   len(input.Wishes),
			Capacity: lo.SumBy(input.Classes, func(class model.Class) int64 { return class.MaxInClass }),
		})
	}

	return tests
}

// generateInput builds an instance whose total capacity is about 90% of the pupils, with on average one
// wish per pupil
func generateInput(random *rand.Rand, pupils, classes int) model.RawModelInput {
	input := model.RawModelInput{
		Pupils:  make([]model.Pupil, 0, pupils),
		Classes: make([]model.Class, 0, classes),
		Wishes:  make([]model.Wish, 0, pupils),
	}

	for i := 1; i <= pupils; i++ {
		input.Pupils = append(input.Pupils, model.Pupil{Id: int64(i), Name: fmt.Sprintf("Pupil%d", i)})
	}

	capacity := pupils * 9 / 10
	for i := 0; i < classes; i++ {
		maxInClass := capacity / classes
		if i < capacity%classes {
			maxInClass++
		}
		input.Classes = append(input.Classes, model.Class{Name: fmt.Sprintf("%d%c", i/26+1, 'A'+i%26), MaxInClass: int64(maxInClass)})
	}

	seen := make(map[[2]int64]bool)
	for len(input.Wishes) < pupils && pupils > 1 {
		first, second := int64(random.Intn(pupils)+1), int64(random.Intn(pupils)+1)
		if first == second || seen[[2]int64{first, second}] {
			continue
		}
		seen[[2]int64{first, second}] = true
		input.Wishes = append(input.Wishes, model.Wish{PupilId1: first, PupilId2: second})
	}

	return input
}

func getSolvers() []SolverType {
	solvers := []SolverType{simplex, pseudoboolean}
	if _, err := exec.LookPath("glpsol"); err == nil {
		solvers = append(solvers, glpk)
	}
	return solvers
}

func measure(solver SolverType, testFile string) (duration int64, maxMemory float32, cpuPercentage int64, result ResultType) {
	cmd := exec.Command("/usr/bin/time", "-v", executablePath, "solve", "--solver", solverTypes[solver], "--timeout", timeout, "--output", "json", "--log-level", "error", "--file", testFile)

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr

	cmd.Run()
	if cmd.ProcessState.ExitCode() != 10 && cmd.ProcessState.ExitCode() != 20 {
		log.Fatalf("an error occurred during the execution \"placement\" at test \"%v\" using solver \"%v\": %v\n", testFile, solverTypes[solver], stdErr.String())
	} else if cmd.ProcessState.ExitCode() == 20 {
		result = unsolved
	} else {
		result = solved
	}
	splits := strings.Split(stdErr.String(), "\n")
	getLine := func(substr string) string {
		line, ok := lo.Find(splits, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			log.Fatalf("Substring \"%v\" could not be found", substr)
		}
		return line
	}

	duration = parseDurationLine(getLine("wall clock"))
	maxMemory = parseMemoryLine(getLine("maximum resident set size"))
	cpuPercentage = parseCpuPercentageLine(getLine("percent of cpu"))

	return duration, maxMemory, cpuPercentage, result
}

func toCsv(results []BenchmarkResult) {
	file, err := os.Create("benchmark_results.csv")
	if err != nil {
		log.Panicf("cannot create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Solver", "Test", "Pupils", "Classes", "Wishes", "Capacity", "Duration(ms)", "Memory(MB)", "CPU(%)", "Result"}
	if err := writer.Write(header); err != nil {
		log.Panicf("cannot write CSV header: %v", err)
	}

	for _, result := range results {
		if err := writer.Write(toRecord(result)); err != nil {
			log.Panicf("cannot write CSV record: %v", err)
		}
	}
}

func toRecord(result BenchmarkResult) []string {
	return []string{
		solverTypes[result.Solver],
		result.Test.Name,
		fmt.Sprintf("%d", result.Test.Pupils),
		fmt.Sprintf("%d", result.Test.Classes),
		fmt.Sprintf("%d", result.Test.Wishes),
		fmt.Sprintf("%d", result.Test.Capacity),
		fmt.Sprintf("%d", result.Duration),
		fmt.Sprintf("%.1f", result.Memory),
		fmt.Sprintf("%d", result.CpuPercentage),
		resultTypes[result.Result],
	}
}

func parseDurationLine(line string) int64 {
	durationStr := strings.Split(line, "(h:mm:ss or m:ss):")[1][1:]
	return parseDuration(durationStr)
}

func parseDuration(durationStr string) int64 {
	parts := strings.Split(durationStr, ":")
	secondsStr := parts[len(parts)-1]
	secondsParts := strings.Split(secondsStr, ".")

	var duration int64
	if len(parts) == 3 { // h:mm:ss
		hours := lo.Must(strconv.Atoi(parts[0]))
		minutes := lo.Must(strconv.Atoi(parts[1]))
		seconds := lo.Must(strconv.Atoi(secondsParts[0]))
		hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
		duration = int64(hours*3600+minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
	} else if len(parts) == 2 { // m:ss
		minutes := lo.Must(strconv.Atoi(parts[0]))
		seconds := lo.Must(strconv.Atoi(secondsParts[0]))
		hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
		duration = int64(minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
	} else {
		log.Fatalf("unexpected duration format: %v", durationStr)
	}
	return duration
}

func parseMemoryLine(line string) float32 {
	memoryStr := strings.Split(line, ":")[1][1:]
	return float32(lo.Must(strconv.ParseFloat(memoryStr, 32))) / 1024
}

func parseCpuPercentageLine(line string) int64 {
	percentageStr := strings.Split(line, ":")[1][1:]
	percentageStr = percentageStr[:len(percentageStr)-1]
	return int64(lo.Must(strconv.Atoi(percentageStr)))
}
