package cryptomatte

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the optional Prometheus instrumentation wired into Load and
// the mask decoder. A nil *metrics (the Registerer-less default) is valid
// everywhere it's used; every method is a no-op on a nil receiver.
type metrics struct {
	masksDecoded       prometheus.Counter
	chunkDecompress    prometheus.Histogram
	loadedChannelBytes prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		masksDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptomatte",
			Name:      "masks_decoded_total",
			Help:      "Total number of masks decoded across all Cryptomattes.",
		}),
		chunkDecompress: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cryptomatte",
			Name:      "chunk_decompress_seconds",
			Help:      "Latency of a single compressed-channel chunk decompression.",
			Buckets:   prometheus.DefBuckets,
		}),
		loadedChannelBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cryptomatte",
			Name:      "loaded_channel_bytes",
			Help:      "Decompressed byte count of channels currently loaded via Load.",
		}),
	}
	reg.MustRegister(m.masksDecoded, m.chunkDecompress, m.loadedChannelBytes)
	return m
}

func (m *metrics) incMasksDecoded() {
	if m == nil {
		return
	}
	m.masksDecoded.Inc()
}

func (m *metrics) observeChunkDecompress(seconds float64) {
	if m == nil {
		return
	}
	m.chunkDecompress.Observe(seconds)
}

func (m *metrics) addLoadedChannelBytes(n float64) {
	if m == nil {
		return
	}
	m.loadedChannelBytes.Add(n)
}
