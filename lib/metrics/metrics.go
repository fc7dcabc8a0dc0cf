// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics records per-account activity: inbound and outbound
// traffic, policy drops, daemon lifecycle. Each Recorder keeps an
// in-memory status snapshot and exports the same signals as Prometheus
// metrics on its own registry.
package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "telecli"

// Status is the latest known state of one account.
type Status struct {
	AccountID      string    `json:"account_id"`
	Connected      bool      `json:"connected"`
	LastInboundAt  time.Time `json:"last_inbound_at,omitzero"`
	LastOutboundAt time.Time `json:"last_outbound_at,omitzero"`
	LastStartAt    time.Time `json:"last_start_at,omitzero"`
	LastStopAt     time.Time `json:"last_stop_at,omitzero"`
	LastError      string    `json:"last_error,omitempty"`
}

// Recorder is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	inbound   *prometheus.CounterVec
	outbound  *prometheus.CounterVec
	drops     *prometheus.CounterVec
	failures  *prometheus.CounterVec
	connected *prometheus.GaugeVec
	starts    *prometheus.CounterVec
	lastSeen  *prometheus.GaugeVec

	mu       sync.Mutex
	statuses map[string]*Status
}

// New returns a Recorder with its metrics registered on a fresh
// registry.
func New() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages dispatched to the agent.",
		}, []string{"account"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Messages delivered to Telegram.",
		}, []string{"account"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_dropped_total",
			Help:      "Inbound messages dropped by policy, by reason.",
		}, []string{"account", "reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Dispatch and delivery failures, by stage.",
		}, []string{"account", "stage"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_connected",
			Help:      "1 while the account's tele-cli daemon is running.",
		}, []string{"account"}),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daemon_starts_total",
			Help:      "tele-cli daemon launches.",
		}, []string{"account"}),
		lastSeen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_activity_timestamp_seconds",
			Help:      "Unix time of the latest activity, by direction.",
		}, []string{"account", "direction"}),
		statuses: make(map[string]*Status),
	}
	recorder.registry.MustRegister(
		recorder.inbound,
		recorder.outbound,
		recorder.drops,
		recorder.failures,
		recorder.connected,
		recorder.starts,
		recorder.lastSeen,
	)
	return recorder
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// update applies fn to the account's status under the lock.
func (r *Recorder) update(accountID string, fn func(status *Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.statuses[accountID]
	if !ok {
		status = &Status{AccountID: accountID}
		r.statuses[accountID] = status
	}
	fn(status)
}

// RecordInbound marks a message that passed policy, at its message
// timestamp.
func (r *Recorder) RecordInbound(accountID string, at time.Time) {
	r.inbound.WithLabelValues(accountID).Inc()
	r.lastSeen.WithLabelValues(accountID, "inbound").Set(float64(at.Unix()))
}

// MarkInboundHandled records when the agent finished with the latest
// inbound message.
func (r *Recorder) MarkInboundHandled(accountID string, at time.Time) {
	r.update(accountID, func(status *Status) { status.LastInboundAt = at })
}

// RecordOutbound marks a delivered message.
func (r *Recorder) RecordOutbound(accountID string, at time.Time) {
	r.outbound.WithLabelValues(accountID).Inc()
	r.lastSeen.WithLabelValues(accountID, "outbound").Set(float64(at.Unix()))
	r.update(accountID, func(status *Status) { status.LastOutboundAt = at })
}

// RecordDrop counts a message dropped by policy.
func (r *Recorder) RecordDrop(accountID, reason string) {
	r.drops.WithLabelValues(accountID, reason).Inc()
}

// RecordFailure counts a failed stage ("dispatch", "deliver",
// "session", "pairing") and remembers the error.
func (r *Recorder) RecordFailure(accountID, stage string, err error) {
	r.failures.WithLabelValues(accountID, stage).Inc()
	if err != nil {
		r.update(accountID, func(status *Status) { status.LastError = err.Error() })
	}
}

// RecordStart marks a daemon launch.
func (r *Recorder) RecordStart(accountID string, at time.Time) {
	r.starts.WithLabelValues(accountID).Inc()
	r.connected.WithLabelValues(accountID).Set(1)
	r.update(accountID, func(status *Status) {
		status.Connected = true
		status.LastStartAt = at
		status.LastError = ""
	})
}

// RecordStop marks a daemon exit. A nil err is a clean stop.
func (r *Recorder) RecordStop(accountID string, at time.Time, err error) {
	r.connected.WithLabelValues(accountID).Set(0)
	r.update(accountID, func(status *Status) {
		status.Connected = false
		status.LastStopAt = at
		if err != nil {
			status.LastError = err.Error()
		}
	})
}

// Snapshot returns the status of one account. Unknown accounts report
// a zero status carrying only the id.
func (r *Recorder) Snapshot(accountID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status, ok := r.statuses[accountID]; ok {
		return *status
	}
	return Status{AccountID: accountID}
}

// Snapshots returns every known account's status, sorted by id.
func (r *Recorder) Snapshots() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]Status, 0, len(r.statuses))
	for _, status := range r.statuses {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].AccountID < statuses[j].AccountID })
	return statuses
}
