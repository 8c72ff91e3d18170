package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/transport"
	"github.com/obinexus/polycall-sub002/protocol/transport/tcp"
	"github.com/obinexus/polycall-sub002/protocol/transport/unix"
	"github.com/obinexus/polycall-sub002/protocol/transport/ws"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the protocol engine flags shared by all
// commands that open connections.
func SetupEngineFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:7070", WrapString("The protocol endpoint (host:port for tcp, a socket path for unix, a ws:// URL for websocket)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds for single send/receive operations"))

	key = "max-message-size"
	cmd.PersistentFlags().Int(key, 16*1024*1024, WrapString("Maximum total size of a single serialized message in bytes"))

	key = "fragment-size"
	cmd.PersistentFlags().Int(key, 64*1024, WrapString("Negotiated fragment unit in bytes. Payloads above this size are split into fragments (0 disables fragmentation)"))

	key = "require-auth"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether the connection must authenticate before becoming ready"))

	key = "auth-token"
	cmd.PersistentFlags().String(key, "", WrapString("Shared token presented (client) and expected (server) during authentication"))

	key = "compression"
	cmd.PersistentFlags().String(key, "fast", WrapString("Compression level (none, fast, balanced, best)"))

	key = "min-compress-size"
	cmd.PersistentFlags().Int(key, 512, WrapString("Payloads below this size are never compressed"))

	key = "batch-strategy"
	cmd.PersistentFlags().String(key, "size", WrapString("Batch flush strategy (size, time, priority, type, adaptive)"))

	key = "batch-size"
	cmd.PersistentFlags().Int(key, 16, WrapString("Queued-message threshold for size-triggered batch flushes"))

	key = "batch-timeout-ms"
	cmd.PersistentFlags().Int(key, 50, WrapString("Age threshold in milliseconds for time-triggered batch flushes"))

	key = "pool-size"
	cmd.PersistentFlags().Int(key, 1, WrapString("Number of pooled connections to warm up"))

	key = "pool-max-size"
	cmd.PersistentFlags().Int(key, 64, WrapString("Maximum number of pooled connections"))

	key = "pool-strategy"
	cmd.PersistentFlags().String(key, "lru", WrapString("Which idle pooled connection an acquire prefers (lru, mru, round-robin)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for ws)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for ws)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds (only for tcp)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("polycall")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the engine configuration from viper
func GetConfig() (common.Config, error) {
	conf := common.DefaultConfig()

	conf.Transport.Endpoint = viper.GetString("endpoint")
	conf.Transport.TimeoutSecond = viper.GetInt("timeout")
	conf.Transport.SocketConf.WriteBufferSize = viper.GetInt("transport-write-buffer") * 1024
	conf.Transport.SocketConf.ReadBufferSize = viper.GetInt("transport-read-buffer") * 1024
	conf.Transport.TCPConf.TCPNoDelay = viper.GetBool("transport-tcp-nodelay")
	conf.Transport.TCPConf.TCPKeepAliveSec = viper.GetInt("transport-tcp-keepalive")

	conf.Protocol.MaxMessageSize = uint32(viper.GetInt("max-message-size"))
	conf.Protocol.FragmentSize = uint32(viper.GetInt("fragment-size"))
	conf.Protocol.RequireAuth = viper.GetBool("require-auth")

	level, err := common.ParseCompressionLevel(viper.GetString("compression"))
	if err != nil {
		return conf, err
	}
	conf.Optimizer.CompressionLevel = level
	conf.Optimizer.MinCompressSize = viper.GetInt("min-compress-size")

	strategy, err := common.ParseBatchStrategy(viper.GetString("batch-strategy"))
	if err != nil {
		return conf, err
	}
	conf.Optimizer.BatchStrategy = strategy
	conf.Optimizer.BatchSize = viper.GetInt("batch-size")
	conf.Optimizer.BatchTimeout = time.Duration(viper.GetInt("batch-timeout-ms")) * time.Millisecond

	conf.Pool.Size = viper.GetInt("pool-size")
	conf.Pool.MaxSize = viper.GetInt("pool-max-size")
	poolStrategy, err := common.ParsePoolStrategy(viper.GetString("pool-strategy"))
	if err != nil {
		return conf, err
	}
	conf.Pool.Strategy = poolStrategy

	conf.LogLevel = viper.GetString("log-level")

	return conf, nil
}

// GetConnector creates a client connector based on configuration
func GetConnector() (transport.IConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewConnector(), nil
	case "unix":
		return unix.NewConnector(), nil
	case "ws":
		return ws.NewConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetListenerConnector creates a server listener connector based on
// configuration. The websocket transport is dial-only.
func GetListenerConnector() (transport.IListenerConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewListenerConnector(), nil
	case "unix":
		return unix.NewListenerConnector(), nil
	default:
		return nil, fmt.Errorf("invalid server transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
