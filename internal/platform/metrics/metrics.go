// Package metrics counts what the match server does so load tests can be read back.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Collector gathers match and transport counters. A nil *Collector is valid and records nothing.
type Collector struct {
	MatchesStarted  atomic.Int64
	MatchesFinished atomic.Int64
	MatchesAborted  atomic.Int64
	NightsResolved  atomic.Int64
	ResolveNanosMax atomic.Int64
	Lynches         atomic.Int64

	ActionsAccepted atomic.Int64
	ActionsRejected atomic.Int64

	ResultWrites      atomic.Int64
	ResultWriteErrors atomic.Int64
	EventWriteErrors  atomic.Int64

	WSConnectionsActive atomic.Int64
	WSMessagesIn        atomic.Int64
	WSMessagesOut       atomic.Int64
	WSDropped           atomic.Int64

	startTime time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordNight records one night pipeline run and its latency.
func (c *Collector) RecordNight(latency time.Duration) {
	if c == nil {
		return
	}
	c.NightsResolved.Add(1)
	for {
		cur := c.ResolveNanosMax.Load()
		if int64(latency) <= cur || c.ResolveNanosMax.CompareAndSwap(cur, int64(latency)) {
			return
		}
	}
}

// RecordAction records a command surface submission.
func (c *Collector) RecordAction(accepted bool) {
	if c == nil {
		return
	}
	if accepted {
		c.ActionsAccepted.Add(1)
	} else {
		c.ActionsRejected.Add(1)
	}
}

// RecordMatch records a match lifecycle edge: "started", "finished" or "aborted".
func (c *Collector) RecordMatch(edge string) {
	if c == nil {
		return
	}
	switch edge {
	case "started":
		c.MatchesStarted.Add(1)
	case "finished":
		c.MatchesFinished.Add(1)
	case "aborted":
		c.MatchesAborted.Add(1)
	}
}

// RecordLynch counts a resolved lynch.
func (c *Collector) RecordLynch() {
	if c == nil {
		return
	}
	c.Lynches.Add(1)
}

// RecordResultWrite records a match result persistence attempt.
func (c *Collector) RecordResultWrite(err error) {
	if c == nil {
		return
	}
	c.ResultWrites.Add(1)
	if err != nil {
		c.ResultWriteErrors.Add(1)
	}
}

// RecordEventWriteError counts a failed event persistence.
func (c *Collector) RecordEventWriteError() {
	if c == nil {
		return
	}
	c.EventWriteErrors.Add(1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	if c == nil {
		return
	}
	c.WSConnectionsActive.Add(delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		c.WSMessagesIn.Add(1)
	} else {
		c.WSMessagesOut.Add(1)
	}
}

// RecordWSDrop counts a message dropped because a client was too slow.
func (c *Collector) RecordWSDrop() {
	if c == nil {
		return
	}
	c.WSDropped.Add(1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": time.Since(c.startTime).Seconds(),

		"matches": map[string]interface{}{
			"started":  c.MatchesStarted.Load(),
			"finished": c.MatchesFinished.Load(),
			"aborted":  c.MatchesAborted.Load(),
		},

		"resolution": map[string]interface{}{
			"nights":         c.NightsResolved.Load(),
			"max_latency_ms": float64(c.ResolveNanosMax.Load()) / 1e6,
			"lynches":        c.Lynches.Load(),
		},

		"actions": map[string]interface{}{
			"accepted": c.ActionsAccepted.Load(),
			"rejected": c.ActionsRejected.Load(),
		},

		"storage": map[string]interface{}{
			"result_writes":      c.ResultWrites.Load(),
			"result_errors":      c.ResultWriteErrors.Load(),
			"event_write_errors": c.EventWriteErrors.Load(),
		},

		"websocket": map[string]interface{}{
			"active_connections": c.WSConnectionsActive.Load(),
			"messages_in":        c.WSMessagesIn.Load(),
			"messages_out":       c.WSMessagesOut.Load(),
			"dropped":            c.WSDropped.Load(),
		},
	}
}

// Handler returns an HTTP handler for the JSON metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns the counters in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("cidade_matches_started", "Matches started", c.MatchesStarted.Load())
		counter("cidade_matches_finished", "Matches finished with a result", c.MatchesFinished.Load())
		counter("cidade_matches_aborted", "Matches finished with an error or forced end", c.MatchesAborted.Load())
		counter("cidade_nights_resolved", "Night pipelines run", c.NightsResolved.Load())
		counter("cidade_lynches", "Lynches resolved", c.Lynches.Load())
		counter("cidade_actions_accepted", "Accepted submissions", c.ActionsAccepted.Load())
		counter("cidade_actions_rejected", "Rejected submissions", c.ActionsRejected.Load())
		counter("cidade_result_write_errors", "Failed result writes", c.ResultWriteErrors.Load())

		fmt.Fprintf(w, "# HELP cidade_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE cidade_ws_connections gauge\n")
		fmt.Fprintf(w, "cidade_ws_connections %d\n\n", c.WSConnectionsActive.Load())

		fmt.Fprintf(w, "# HELP cidade_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE cidade_ws_messages_total counter\n")
		fmt.Fprintf(w, "cidade_ws_messages_total{direction=\"in\"} %d\n", c.WSMessagesIn.Load())
		fmt.Fprintf(w, "cidade_ws_messages_total{direction=\"out\"} %d\n", c.WSMessagesOut.Load())
	}
}
