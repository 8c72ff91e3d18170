package cmd

import (
	"fmt"
	"os"

	"github.com/obinexus/polycall-sub002/cmd/ping"
	"github.com/obinexus/polycall-sub002/cmd/serve"
	"github.com/obinexus/polycall-sub002/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "polycall",
		Short: "connection-oriented protocol engine",
		Long: fmt.Sprintf(`polycall (v%s)

A connection-oriented application-protocol engine: binary message
framing with integrity checks, per-connection lifecycle management,
transmission optimization and connection pooling.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of polycall",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("polycall v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(ping.PingCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix, ws)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("log level (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
