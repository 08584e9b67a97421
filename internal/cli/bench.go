package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/spf13/cobra"

	"mini-lb/client"
	"mini-lb/message"
)

var (
	benchRequests    int
	benchConcurrency int
	benchData        string
	benchHeaders     []string
)

var benchCmd = &cobra.Command{
	Use:   "bench METHOD URL",
	Short: "Send many requests and report latency percentiles",
	Long: `Send --requests calls with --concurrency workers through the load-balanced
client and report latency percentiles, status codes, retries and failures.

Examples:
  lbctl bench GET http://users/v1/users/1 -n 1000 -C 8 -c lb.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runBenchCmd,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&benchRequests, "requests", "n", 100, "Total number of requests")
	benchCmd.Flags().IntVarP(&benchConcurrency, "concurrency", "C", 4, "Number of concurrent workers")
	benchCmd.Flags().StringVarP(&benchData, "data", "d", "", "Request body, or @file to read it from a file")
	benchCmd.Flags().StringArrayVarP(&benchHeaders, "header", "H", nil, "Request header 'Name: value' (repeatable)")
}

func runBenchCmd(cmd *cobra.Command, args []string) error {
	if benchRequests <= 0 || benchConcurrency <= 0 {
		return fmt.Errorf("--requests and --concurrency must be positive")
	}
	req, err := buildRequest(args[0], args[1], benchData, benchHeaders, "")
	if err != nil {
		return err
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	result := runBench(ctx, e.newClient(), req, benchRequests, benchConcurrency)
	result.write(cmd.OutOrStdout())
	return nil
}

type benchResult struct {
	latency  *hdrhistogram.Histogram // microseconds
	statuses map[int]int
	failures int
	retries  int
	elapsed  time.Duration
}

// runBench issues n calls of req from concurrency workers. Response bodies
// are drained so connections return to the pool.
func runBench(ctx context.Context, cli *client.Client, req *message.Request, n, concurrency int) *benchResult {
	res := &benchResult{
		latency:  hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3),
		statuses: make(map[int]int),
	}
	var mu sync.Mutex
	jobs := make(chan struct{})
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				t0 := time.Now()
				resp, err := cli.Execute(ctx, req, nil)
				if err == nil {
					io.Copy(io.Discard, resp.Body)
					resp.Close()
				}
				took := time.Since(t0)

				mu.Lock()
				res.latency.RecordValue(took.Microseconds())
				if err != nil {
					res.failures++
				} else {
					res.statuses[resp.Status]++
					res.retries += len(resp.Attempts) - 1
				}
				mu.Unlock()
			}
		}()
	}

loop:
	for i := 0; i < n; i++ {
		select {
		case jobs <- struct{}{}:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()
	res.elapsed = time.Since(start)
	return res
}

func (r *benchResult) write(w io.Writer) {
	total := r.latency.TotalCount()
	fmt.Fprintf(w, "requests:   %d in %s (%.1f req/s)\n", total, r.elapsed.Round(time.Millisecond),
		float64(total)/r.elapsed.Seconds())
	fmt.Fprintf(w, "failures:   %d\n", r.failures)
	fmt.Fprintf(w, "retries:    %d\n", r.retries)

	codes := make([]int, 0, len(r.statuses))
	for code := range r.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "status %d: %d\n", code, r.statuses[code])
	}

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	fmt.Fprintf(w, "latency:    min=%s mean=%s max=%s\n",
		us(r.latency.Min()), us(int64(r.latency.Mean())), us(r.latency.Max()))
	for _, q := range []float64{50, 90, 99, 99.9} {
		fmt.Fprintf(w, "  p%-5v %s\n", q, us(r.latency.ValueAtQuantile(q)))
	}
}
