package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors shared by the caches, the sync protocol and the relay.
// Label values are bounded: cache names, packet types, storage modes and a
// small fixed set of results.
var (
	// CacheEntries gauges the live entries per cache (player, sender, synced).
	CacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatsync_cache_entries",
			Help: "Number of entries held by each in-memory cache.",
		},
		[]string{"cache"},
	)

	// Packets counts inbound packets by type and outcome
	// (applied, duplicate, failed, unknown).
	Packets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_packets_total",
			Help: "Inbound sync packets by type and result.",
		},
		[]string{"type", "result"},
	)

	// PacketsSent counts outbound packets by type and outcome (ok, error).
	PacketsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_packets_sent_total",
			Help: "Outbound sync packets by type and result.",
		},
		[]string{"type", "result"},
	)

	// StoreWrites counts write-throughs by storage mode and outcome.
	StoreWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_store_writes_total",
			Help: "Write-throughs to the backing store by mode and result.",
		},
		[]string{"mode", "result"},
	)

	// PollDuration measures worker-side resolution latency by kind (one, all).
	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_poll_duration_seconds",
			Help:    "Time spent resolving identities on a worker.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// RelayNodes gauges the nodes currently reporting to a relay.
	RelayNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_relay_nodes",
			Help: "Nodes with a fresh roster on this relay.",
		},
	)
)

func init() {
	prometheus.MustRegister(CacheEntries, Packets, PacketsSent, StoreWrites, PollDuration, RelayNodes)
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
