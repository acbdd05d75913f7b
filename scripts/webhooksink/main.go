// Webhooksink is a local webhook receiver for exercising webhook channels.
// It can be told to fail a fraction of deliveries so circuit breakers trip.
//
// Usage:
//
//	go run ./scripts/webhooksink -port 8081
//	go run ./scripts/webhooksink -port 8081 -fail-rate 0.5 -delay 200ms
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type delivery struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "fraction of deliveries answered with 503")
	delay := flag.Duration("delay", 0, "artificial latency per delivery")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify", func(w http.ResponseWriter, r *http.Request) {
		var d delivery
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		time.Sleep(*delay)

		if rand.Float64() < *failRate {
			log.Printf("rejecting: type=%s recipient=%s", d.Type, d.Recipient)
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		id := uuid.NewString()
		log.Printf("accepted: id=%s type=%s recipient=%s message=%q", id, d.Type, d.Recipient, d.Message)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("webhook sink listening on %s (fail-rate=%.2f)", addr, *failRate)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
