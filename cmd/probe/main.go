// Probe a running hub to measure viewer-facing latency.
//
// Measures /healthz round-trip, time from a scoreboard subscribe to its
// snapshot, and websocket ping/pong on the viewer endpoint.
//
// Usage:
//
//	go run ./cmd/probe                          # default: localhost:8000, 20 samples
//	go run ./cmd/probe --hub http://host:8000   # remote hub
//	go run ./cmd/probe -n 50 --ws               # also ping/pong the socket
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/sports-lounge/internal/fanout"
)

const (
	httpTimeout = 10 * time.Second
	wsTimeout   = 5 * time.Second
)

func main() {
	hub := flag.String("hub", "http://localhost:8000", "Hub base URL")
	n := flag.Int("n", 20, "Samples per measurement")
	ws := flag.Bool("ws", false, "Also measure websocket ping/pong latency")
	flag.Parse()

	base := strings.TrimSuffix(*hub, "/")
	wsBase := "ws" + strings.TrimPrefix(base, "http")

	banner("HUB HEALTH: " + base)
	probeHealth(base+"/healthz", *n)

	banner("SCOREBOARD SUBSCRIBE: " + wsBase + "/ws/live")
	printStats(measureSubscribe(wsBase+"/ws/live", *n), "Subscribe -> snapshot")

	if *ws {
		banner("VIEWER PING/PONG")
		printStats(measurePing(wsBase+"/ws/live", *n), "WebSocket ping/pong")
	}
	fmt.Println()
}

func banner(title string) {
	fmt.Printf("\n%s\n  %s\n%s\n", strings.Repeat("=", 55), title, strings.Repeat("=", 55))
}

func probeHealth(url string, n int) {
	client := &http.Client{Timeout: httpTimeout}
	var health fanout.Health
	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		resp, err := client.Get(url)
		if err != nil {
			fmt.Printf("  [!] %v\n", err)
			return
		}
		if i == 0 {
			json.NewDecoder(resp.Body).Decode(&health)
		}
		resp.Body.Close()
		latencies = append(latencies, ms(time.Since(start)))
	}

	fmt.Printf("\n  relay connected: %v  viewers: %d\n", health.RelayConnected, health.Viewers)
	for sport, age := range health.ScheduleAgeSeconds {
		fmt.Printf("  schedule %-8s %8.1fs old\n", sport, age)
	}
	printStats(latencies, "healthz HTTP")
}

// measureSubscribe opens a fresh viewer per sample so each one pays for a
// full snapshot build.
func measureSubscribe(url string, n int) []float64 {
	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			fmt.Printf("  [!] dial failed: %v\n", err)
			return latencies
		}
		start := time.Now()
		err = conn.WriteJSON(fanout.ViewerRequest{Type: fanout.ReqSubscribe, Topic: fanout.TopicScoreboard})
		if err == nil {
			conn.SetReadDeadline(time.Now().Add(wsTimeout))
			_, _, err = conn.ReadMessage()
		}
		conn.Close()
		if err != nil {
			fmt.Printf("  [!] subscribe failed: %v\n", err)
			return latencies
		}
		latencies = append(latencies, ms(time.Since(start)))
	}
	return latencies
}

func measurePing(url string, n int) []float64 {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Printf("  [!] dial failed: %v\n", err)
		return nil
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})
	// control frames are only processed while reading
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsTimeout)); err != nil {
			fmt.Printf("  [!] ping failed: %v\n", err)
			break
		}
		select {
		case <-pongCh:
			latencies = append(latencies, ms(time.Since(start)))
		case <-time.After(wsTimeout):
			fmt.Printf("  [!] pong timeout\n")
			return latencies
		}
	}
	return latencies
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func printStats(latencies []float64, label string) {
	if len(latencies) < 2 {
		fmt.Printf("\n  Not enough %s samples for statistics.\n", label)
		return
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	mean := 0.0
	for _, v := range latencies {
		mean += v
	}
	mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(variance / float64(len(latencies)-1))

	pct := func(p float64) float64 {
		return sorted[min(int(float64(len(sorted))*p), len(sorted)-1)]
	}

	fmt.Printf("\n  --- %s (%d samples) ---\n", label, len(latencies))
	fmt.Printf("  Min:    %7.1f ms\n", sorted[0])
	fmt.Printf("  Max:    %7.1f ms\n", sorted[len(sorted)-1])
	fmt.Printf("  Mean:   %7.1f ms\n", mean)
	fmt.Printf("  Median: %7.1f ms\n", sorted[len(sorted)/2])
	fmt.Printf("  Stdev:  %7.1f ms\n", stdev)
	fmt.Printf("  p95:    %7.1f ms\n", pct(0.95))
	fmt.Printf("  p99:    %7.1f ms\n", pct(0.99))
}
