// Dispatchload fires concurrent dispatches at a running router and reports
// how many were delivered, rate limited, or failed, per recipient. With a
// daily quota of N, no recipient should ever show more than N deliveries.
//
// Usage:
//
//	go run ./scripts/dispatchload -url http://localhost:8080/dispatch -recipients 5 -requests 100
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type dispatchRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

type dispatchResult struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
	Channel string `json:"channel"`
}

type recipientStats struct {
	Delivered   int `json:"delivered"`
	RateLimited int `json:"rate_limited"`
	Failed      int `json:"failed"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/dispatch", "Dispatch endpoint")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of dispatches")
		recipients  = flag.Int("recipients", 5, "Distinct recipients to spread dispatches over")
		kind        = flag.String("type", "EMAIL", "Notification type")
		timeout     = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errors   atomic.Int32
		statsMu  sync.Mutex
		stats    = make(map[string]*recipientStats)
		channels = make(map[string]int)
	)

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				recipient := fmt.Sprintf("lead-%d", idx%*recipients)
				body, _ := json.Marshal(dispatchRequest{Recipient: recipient, Message: fmt.Sprintf("message %d", idx), Type: *kind})

				resp, err := client.Post(*url, "application/json", bytes.NewReader(body))
				if err != nil {
					errors.Add(1)
					continue
				}

				var res dispatchResult
				_ = json.NewDecoder(resp.Body).Decode(&res)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				statsMu.Lock()
				rs, ok := stats[recipient]
				if !ok {
					rs = &recipientStats{}
					stats[recipient] = rs
				}
				switch {
				case res.Success:
					rs.Delivered++
					channels[res.Channel]++
				case resp.StatusCode == http.StatusTooManyRequests:
					rs.RateLimited++
				default:
					rs.Failed++
				}
				statsMu.Unlock()
			}
		}()
	}

	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("--- Dispatch Load Summary ---")
	fmt.Printf("Target: %s  Requests: %d  Concurrency: %d\n", *url, *requests, *concurrency)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s  Transport errors: %d\n",
		elapsed, float64(*requests)/elapsed.Seconds(), errors.Load())

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nPer recipient:")
	for _, name := range names {
		rs := stats[name]
		fmt.Printf("  %-10s delivered=%d rate_limited=%d failed=%d\n", name, rs.Delivered, rs.RateLimited, rs.Failed)
	}

	fmt.Println("\nDelivering channels:")
	for name, n := range channels {
		fmt.Printf("  %-10s %d\n", name, n)
	}

	if *outJSON != "" {
		summary := map[string]any{
			"duration_ms": elapsed.Milliseconds(),
			"errors":      errors.Load(),
			"recipients":  stats,
			"channels":    channels,
		}
		b, _ := json.MarshalIndent(summary, "", "  ")
		if err := os.WriteFile(*outJSON, b, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
			os.Exit(1)
		}
	}
}
