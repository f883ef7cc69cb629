// Stub workflow engine for manual flowbench testing. Executions
// complete after a configurable delay; a fraction can be made to fail.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

type execution struct {
	startedAt time.Time
	failed    bool
}

func main() {
	addr := flag.String("addr", ":7243", "listen address")
	latency := flag.Duration("latency", 50*time.Millisecond, "execution latency")
	failureRate := flag.Float64("failure-rate", 0, "fraction of executions that fail [0,1]")
	flag.Parse()

	var mu sync.Mutex
	executions := make(map[string]execution)

	http.HandleFunc("/api/v1/executions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}

		runID := "run-" + req.ID
		mu.Lock()
		executions[runID] = execution{
			startedAt: time.Now(),
			failed:    rand.Float64() < *failureRate,
		}
		mu.Unlock()

		fmt.Fprintf(w, `{"runId":%q}`, runID)
	})

	http.HandleFunc("/api/v1/executions/", func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimPrefix(r.URL.Path, "/api/v1/executions/")

		mu.Lock()
		exec, ok := executions[runID]
		mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		if time.Since(exec.startedAt) < *latency {
			fmt.Fprint(w, `{"status":"running"}`)
			return
		}
		if exec.failed {
			fmt.Fprint(w, `{"status":"failed","error":"injected failure"}`)
			return
		}
		fmt.Fprint(w, `{"status":"completed"}`)
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "healthy")
	})

	log.Printf("stub engine listening on %s (latency=%v, failure-rate=%.2f)", *addr, *latency, *failureRate)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
