package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Enumerations
// --------------------------------------------------------------------------

// CompressionLevel selects the algorithm/effort used by the optimizer.
type CompressionLevel int

const (
	CompressionNone CompressionLevel = iota
	CompressionFast                  // snappy
	CompressionBalanced              // zstd, default effort
	CompressionBest                  // zstd, maximum effort
)

// String returns the string representation of a CompressionLevel.
func (l CompressionLevel) String() string {
	switch l {
	case CompressionNone:
		return "none"
	case CompressionFast:
		return "fast"
	case CompressionBalanced:
		return "balanced"
	case CompressionBest:
		return "best"
	default:
		return "unknown"
	}
}

// ParseCompressionLevel converts a string to a CompressionLevel.
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch strings.ToLower(s) {
	case "none":
		return CompressionNone, nil
	case "fast":
		return CompressionFast, nil
	case "balanced":
		return CompressionBalanced, nil
	case "best":
		return CompressionBest, nil
	default:
		return CompressionNone, fmt.Errorf("%w: unknown compression level %q", ErrInvalidParameter, s)
	}
}

// BatchStrategy selects how the optimizer decides when a queued batch
// is flushed.
type BatchStrategy int

const (
	// BatchBySize flushes once BatchSize messages are queued.
	BatchBySize BatchStrategy = iota
	// BatchByTime flushes once BatchTimeout elapsed since the oldest
	// queued message.
	BatchByTime
	// BatchByPriority keeps one queue per priority and drains the
	// highest priority first.
	BatchByPriority
	// BatchByType groups queued messages into homogeneous batches by
	// message type.
	BatchByType
	// BatchAdaptive switches between the other strategies based on
	// recent throughput and latency samples.
	BatchAdaptive
)

// String returns the string representation of a BatchStrategy.
func (s BatchStrategy) String() string {
	switch s {
	case BatchBySize:
		return "size"
	case BatchByTime:
		return "time"
	case BatchByPriority:
		return "priority"
	case BatchByType:
		return "type"
	case BatchAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParseBatchStrategy converts a string to a BatchStrategy.
func ParseBatchStrategy(s string) (BatchStrategy, error) {
	switch strings.ToLower(s) {
	case "size":
		return BatchBySize, nil
	case "time":
		return BatchByTime, nil
	case "priority":
		return BatchByPriority, nil
	case "type":
		return BatchByType, nil
	case "adaptive":
		return BatchAdaptive, nil
	default:
		return BatchBySize, fmt.Errorf("%w: unknown batch strategy %q", ErrInvalidParameter, s)
	}
}

// PoolStrategy selects which idle pool entry an acquire prefers.
type PoolStrategy int

const (
	// PoolLRU hands out the entry that has been idle the longest.
	PoolLRU PoolStrategy = iota
	// PoolMRU hands out the most recently used entry.
	PoolMRU
	// PoolRoundRobin cycles through idle entries.
	PoolRoundRobin
)

// String returns the string representation of a PoolStrategy.
func (s PoolStrategy) String() string {
	switch s {
	case PoolLRU:
		return "lru"
	case PoolMRU:
		return "mru"
	case PoolRoundRobin:
		return "round-robin"
	default:
		return "unknown"
	}
}

// ParsePoolStrategy converts a string to a PoolStrategy.
func ParsePoolStrategy(s string) (PoolStrategy, error) {
	switch strings.ToLower(s) {
	case "lru":
		return PoolLRU, nil
	case "mru":
		return PoolMRU, nil
	case "round-robin", "rr":
		return PoolRoundRobin, nil
	default:
		return PoolLRU, fmt.Errorf("%w: unknown pool strategy %q", ErrInvalidParameter, s)
	}
}

// --------------------------------------------------------------------------
// Socket configuration
// --------------------------------------------------------------------------

// SocketConf holds buffer settings applied to every stream connection.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings (ignored by other transports).
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// EndpointConfig configures how endpoints are dialed and tuned.
type EndpointConfig struct {
	// Endpoint is the address to dial or listen on
	// (e.g. "localhost:7070", "/tmp/polycall.sock", "ws://host:port/path").
	Endpoint string

	// TimeoutSecond bounds single send/receive operations (0 = no deadline)
	TimeoutSecond int

	SocketConf SocketConf
	TCPConf    TCPConf
}

// --------------------------------------------------------------------------
// Protocol configuration
// --------------------------------------------------------------------------

// ProtocolConfig configures one protocol connection.
type ProtocolConfig struct {
	// MaxMessageSize caps the total serialized size of a single message.
	MaxMessageSize uint32

	// FragmentSize is the negotiated payload unit size. Payloads larger
	// than this are split into fragments. 0 disables fragmentation.
	FragmentSize uint32

	// RequireAuth inserts the Auth state between Handshake and Ready.
	RequireAuth bool

	// MaxAuthAttempts bounds failed authentications before the
	// connection is forced into the error state.
	MaxAuthAttempts int

	// MessageCacheSize bounds the per-connection reusable message cache.
	MessageCacheSize int
}

// OptimizerConfig configures compression and batching.
type OptimizerConfig struct {
	CompressionLevel CompressionLevel

	// MinCompressSize is the payload size below which compression is
	// skipped entirely.
	MinCompressSize int

	BatchStrategy BatchStrategy

	// BatchSize is the queued-message threshold for the size strategy.
	BatchSize int

	// BatchTimeout is the age threshold for the time strategy.
	BatchTimeout time.Duration

	// AdaptiveInterval is how often the adaptive strategy re-samples
	// throughput and latency.
	AdaptiveInterval time.Duration

	// MaxQueued caps the number of messages waiting in batch queues.
	MaxQueued int
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	// Size is the number of entries the pool starts with.
	Size int

	// MaxSize caps Resize. 0 means no explicit cap.
	MaxSize int

	Strategy PoolStrategy

	// ValidateOnRelease health-checks every returned connection and
	// replaces it if the check fails.
	ValidateOnRelease bool

	// DialParallelism bounds how many connections are established
	// concurrently during WarmUp and Resize.
	DialParallelism int
}

// --------------------------------------------------------------------------
// Engine configuration
// --------------------------------------------------------------------------

// Config aggregates the configuration of the whole engine.
type Config struct {
	Protocol  ProtocolConfig
	Optimizer OptimizerConfig
	Pool      PoolConfig
	Transport EndpointConfig

	// Logging
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Protocol: ProtocolConfig{
			MaxMessageSize:   16 * 1024 * 1024,
			FragmentSize:     64 * 1024,
			RequireAuth:      false,
			MaxAuthAttempts:  3,
			MessageCacheSize: 32,
		},
		Optimizer: OptimizerConfig{
			CompressionLevel: CompressionFast,
			MinCompressSize:  512,
			BatchStrategy:    BatchBySize,
			BatchSize:        16,
			BatchTimeout:     50 * time.Millisecond,
			AdaptiveInterval: time.Second,
			MaxQueued:        1024,
		},
		Pool: PoolConfig{
			Size:              4,
			MaxSize:           64,
			Strategy:          PoolLRU,
			ValidateOnRelease: false,
			DialParallelism:   4,
		},
		Transport: EndpointConfig{
			Endpoint:      "localhost:7070",
			TimeoutSecond: 10,
			SocketConf: SocketConf{
				WriteBufferSize: 512 * 1024,
				ReadBufferSize:  512 * 1024,
			},
			TCPConf: TCPConf{TCPNoDelay: true},
		},
		LogLevel: "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-26s: %s\n", name, value))
	}

	addSection("Protocol")
	addField("Max Message Size", strconv.FormatUint(uint64(c.Protocol.MaxMessageSize), 10))
	addField("Fragment Size", strconv.FormatUint(uint64(c.Protocol.FragmentSize), 10))
	addField("Require Auth", strconv.FormatBool(c.Protocol.RequireAuth))
	addField("Max Auth Attempts", strconv.Itoa(c.Protocol.MaxAuthAttempts))

	addSection("Optimizer")
	addField("Compression Level", c.Optimizer.CompressionLevel.String())
	addField("Min Compress Size", strconv.Itoa(c.Optimizer.MinCompressSize))
	addField("Batch Strategy", c.Optimizer.BatchStrategy.String())
	addField("Batch Size", strconv.Itoa(c.Optimizer.BatchSize))
	addField("Batch Timeout", c.Optimizer.BatchTimeout.String())

	addSection("Pool")
	addField("Size", strconv.Itoa(c.Pool.Size))
	addField("Max Size", strconv.Itoa(c.Pool.MaxSize))
	addField("Strategy", c.Pool.Strategy.String())
	addField("Validate On Release", strconv.FormatBool(c.Pool.ValidateOnRelease))

	addSection("Transport")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
