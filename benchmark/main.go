// Command benchmark drives put/reserve/delete throughput directly against
// a registry.Registry, in-process, at several levels of concurrency.
package main

import (
	"fmt"
	stdlog "log"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hemant/beanq/internal/jobqueue/registry"
	beanqlog "github.com/hemant/beanq/internal/log"
	"github.com/hemant/beanq/internal/timeutil"
)

type BenchmarkResult struct {
	Name     string
	Jobs     int
	Workers  int
	Duration time.Duration
	RateK    float64
	Success  int64
}

var allResults []BenchmarkResult

// BenchmarkPut measures raw put throughput against a fresh registry.
func BenchmarkPut(numJobs, concurrency int) BenchmarkResult {
	stdlog.Printf("\n=== PUT BENCHMARK ===")
	stdlog.Printf("Jobs: %d, Concurrency: %d goroutines", numJobs, concurrency)

	reg := registry.New(timeutil.NewRealClock(), 1<<16, nil, nil, beanqlog.NewLogger(nil))
	body := []byte("benchmark payload data for testing put throughput")

	var wg sync.WaitGroup
	var success int64
	perWorker := numJobs / concurrency
	start := time.Now()

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			connID := uint64(workerID) + 1
			reg.NewConnection(connID)
			defer reg.CloseConnection(connID)
			for i := 0; i < perWorker; i++ {
				if _, _, err := reg.Put(connID, "default", 0, 0, 60*time.Second, body); err == nil {
					atomic.AddInt64(&success, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	duration := time.Since(start)
	rate := float64(success) / duration.Seconds()

	result := BenchmarkResult{
		Name:     fmt.Sprintf("Put (concurrency=%d)", concurrency),
		Jobs:     numJobs,
		Workers:  concurrency,
		Duration: duration,
		RateK:    rate / 1000,
		Success:  success,
	}
	stdlog.Printf("Results: duration=%v success=%d rate=%.2fK jobs/sec", duration, success, rate/1000)
	return result
}

// BenchmarkPutReserveDelete puts numJobs jobs into a fresh registry before
// timing starts, then measures only the reserve -> delete half of the
// lifecycle, the path a consumer drives.
func BenchmarkPutReserveDelete(numJobs, workers int) BenchmarkResult {
	stdlog.Printf("\n=== PUT+RESERVE+DELETE BENCHMARK ===")
	stdlog.Printf("Jobs: %d, Workers: %d", numJobs, workers)

	reg := registry.New(timeutil.NewRealClock(), 1<<16, nil, nil, beanqlog.NewLogger(nil))
	body := []byte("benchmark payload")

	const producerConn = 1
	reg.NewConnection(producerConn)
	for i := 0; i < numJobs; i++ {
		reg.Put(producerConn, "default", 0, 0, 60*time.Second, body)
	}
	reg.CloseConnection(producerConn)

	var wg sync.WaitGroup
	var processed int64
	start := time.Now()
	perWorker := numJobs / workers

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			connID := uint64(workerID) + 1000
			reg.NewConnection(connID)
			defer reg.CloseConnection(connID)
			for i := 0; i < perWorker; i++ {
				res := reg.Reserve(connID, false, 0)
				if res.Kind != registry.ReserveImmediate || res.Job == nil {
					continue
				}
				if err := reg.Delete(connID, res.Job.ID); err == nil {
					atomic.AddInt64(&processed, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	duration := time.Since(start)
	rate := float64(processed) / duration.Seconds()

	result := BenchmarkResult{
		Name:     fmt.Sprintf("Reserve+Delete (workers=%d)", workers),
		Jobs:     numJobs,
		Workers:  workers,
		Duration: duration,
		RateK:    rate / 1000,
		Success:  processed,
	}
	stdlog.Printf("Results: duration=%v processed=%d rate=%.2fK jobs/sec", duration, processed, rate/1000)
	return result
}

func printSummaryTable() {
	fmt.Println("\n==================== BENCHMARK RESULTS SUMMARY ====================")
	fmt.Printf("%-35s %10s %10s %12s\n", "Test", "Jobs", "Workers", "Rate (K/s)")
	for _, r := range allResults {
		fmt.Printf("%-35s %10d %10d %12.2f\n", r.Name, r.Jobs, r.Workers, r.RateK)
	}
	fmt.Println("=====================================================================")
}

func main() {
	stdlog.SetOutput(os.Stdout)
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	fmt.Println("beanq in-process benchmark suite")
	stdlog.Printf("CPU cores: %d, GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	for _, concurrency := range []int{1, 4, 16, 64} {
		allResults = append(allResults, BenchmarkPut(200_000, concurrency))
	}
	for _, workers := range []int{1, 4, 16, 64} {
		allResults = append(allResults, BenchmarkPutReserveDelete(200_000, workers))
	}

	printSummaryTable()
}
