// Package main - agitator
// Load generator: creates matches over the HTTP API and drives every seat
// with a bot that spams WebSocket commands.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/network"
)

// Config for the agitator
type Config struct {
	BaseURL        string
	NumMatches     int
	MatchSize      int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Output         string
}

// Stats tracks performance metrics
type Stats struct {
	MatchesCreated   int64
	MessagesSent     int64
	MessagesReceived int64
	Rejected         int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

var commandTypes = []string{"phase", "roster", "self", "vote", "skip", "submit", "submit"}

var abilityKinds = []role.Kind{
	role.Protect, role.VillainVote, role.WitchKill, role.Revive, role.Mark, role.Aura,
	role.Compare, role.Channel, role.Spy, role.Shoot, role.Decree, role.Pair, role.Haunt,
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Server base URL")
	matches := flag.Int("matches", 5, "Number of concurrent matches")
	size := flag.Int("size", 8, "Players per match")
	interval := flag.Duration("interval", 200*time.Millisecond, "Command interval per bot")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	output := flag.String("out", "stress_test_results.json", "Where to write the JSON results")
	flag.Parse()

	config := Config{
		BaseURL:        strings.TrimRight(*baseURL, "/"),
		NumMatches:     *matches,
		MatchSize:      *size,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Output:         *output,
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - Cidade Dorme load test")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.BaseURL)
	fmt.Printf("Matches:  %d x %d players\n", config.NumMatches, config.MatchSize)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup
	fmt.Println("\nStarting matches...")

	for i := 0; i < config.NumMatches; i++ {
		seats := make([]engine.Seat, config.MatchSize)
		for j := range seats {
			seats[j] = engine.Seat{ID: uuid.NewString(), Name: fmt.Sprintf("bot-%d-%d", i, j)}
		}

		// Bots connect before the match starts so nobody misses the role notice.
		started := make(chan struct{})
		var ready sync.WaitGroup
		for _, s := range seats {
			wg.Add(1)
			ready.Add(1)
			go func(self engine.Seat) {
				defer wg.Done()
				runBot(ctx, self, seats, config, stats, &ready, started)
			}(s)
		}

		matchID, err := createMatch(ctx, config.BaseURL, seats)
		if err != nil {
			log.Printf("Match %d: create failed: %v", i, err)
			atomic.AddInt64(&stats.Errors, 1)
			close(started)
			continue
		}
		ready.Wait()
		if err := startMatch(ctx, config.BaseURL, matchID); err != nil {
			log.Printf("Match %s: start failed: %v", matchID, err)
			atomic.AddInt64(&stats.Errors, 1)
		} else {
			atomic.AddInt64(&stats.MatchesCreated, 1)
		}
		close(started)
	}

	fmt.Printf("%d matches running\n\n", atomic.LoadInt64(&stats.MatchesCreated))

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: Sent=%d Recv=%d Rejected=%d Errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.Rejected),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func postJSON(ctx context.Context, target string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", target, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func createMatch(ctx context.Context, baseURL string, seats []engine.Seat) (string, error) {
	var view engine.PhaseView
	if err := postJSON(ctx, baseURL+"/api/matches", network.CreateRequest{Players: seats}, &view); err != nil {
		return "", err
	}
	return view.MatchID, nil
}

func startMatch(ctx context.Context, baseURL, matchID string) error {
	return postJSON(ctx, baseURL+"/api/matches/start?match_id="+url.QueryEscape(matchID), nil, nil)
}

func wsURL(baseURL, playerID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("player_id", playerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func runBot(ctx context.Context, self engine.Seat, table []engine.Seat, config Config, stats *Stats, ready *sync.WaitGroup, started <-chan struct{}) {
	target, err := wsURL(config.BaseURL, self.ID)
	if err != nil {
		ready.Done()
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	ready.Done()
	if err != nil {
		log.Printf("Bot %s: connection failed: %v", self.Name, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			var msg network.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			if msg.Type == network.MsgTypeError {
				atomic.AddInt64(&stats.Rejected, 1)
			}
		}
	}()

	select {
	case <-started:
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case <-ticker.C:
			cmd := randomCommand(table)
			start := time.Now()
			if err := conn.WriteJSON(cmd); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

func randomCommand(table []engine.Seat) network.Command {
	cmd := network.Command{Type: commandTypes[rand.Intn(len(commandTypes))]}
	pick := func() string { return table[rand.Intn(len(table))].ID }

	switch cmd.Type {
	case "vote":
		cmd.Targets = []string{pick()}
	case "submit":
		kind := abilityKinds[rand.Intn(len(abilityKinds))]
		cmd.Kind = string(kind)
		switch kind {
		case role.Compare, role.Pair:
			cmd.Targets = []string{pick(), pick()}
		case role.Decree:
		default:
			cmd.Targets = []string{pick()}
		}
	}
	return cmd
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	created := atomic.LoadInt64(&stats.MatchesCreated)
	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	rejected := atomic.LoadInt64(&stats.Rejected)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Matches Started:   %d\n", created)
	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Rejected Commands: %d\n", rejected)
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	stats.mu.Lock()
	latencies := stats.Latencies
	stats.mu.Unlock()
	if len(latencies) > 0 {
		var total time.Duration
		min, max := latencies[0], latencies[0]
		for _, l := range latencies {
			total += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}
		avg := total / time.Duration(len(latencies))

		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", min)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", max)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && created == int64(config.NumMatches):
		fmt.Println("PASSED: server handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("WARNING: some errors detected")
	default:
		fmt.Println("FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"matches_started":    created,
		"messages_sent":      sent,
		"messages_received":  recv,
		"rejected_commands":  rejected,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"matches":    config.NumMatches,
			"match_size": config.MatchSize,
			"interval":   config.ActionInterval.String(),
			"duration":   config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.Output, jsonData, 0644); err != nil {
		log.Printf("write results: %v", err)
		return
	}
	fmt.Printf("\nResults saved to %s\n", config.Output)
}
