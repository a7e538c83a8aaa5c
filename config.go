package cryptomatte

import (
	"runtime"

	"github.com/mrjoshuak/go-cryptomatte/cchannel"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// LoadOptions configures Load: whether to also load legacy preview
// channels, the compressed-channel chunking/codec parameters, the worker
// count for the mask decoder's parallel inner loop, and where to send
// structured logs and metrics. A zero-value LoadOptions is usable: it
// loads no preview channels, chunks with cchannel.DefaultConfig, uses
// runtime.GOMAXPROCS(0) workers, and logs/instruments nowhere.
//
// Modeled on the teacher's ParallelConfig/DefaultParallelConfig pattern
// (exr/parallel.go): a plain value struct passed by the caller, never a
// package-level global (spec §9 "Global state: None").
type LoadOptions struct {
	LoadPreview bool
	ChannelCfg  cchannel.Config
	Workers     int
	Logger      *zap.Logger
	Registerer  prometheus.Registerer
}

// DefaultLoadOptions returns the library's default load configuration.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		LoadPreview: false,
		ChannelCfg:  cchannel.DefaultConfig(),
		Workers:     runtime.GOMAXPROCS(0),
	}
}

func (o LoadOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o LoadOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o LoadOptions) channelCfg() cchannel.Config {
	if o.ChannelCfg.ChunkSize == 0 {
		return cchannel.DefaultConfig()
	}
	return o.ChannelCfg
}
