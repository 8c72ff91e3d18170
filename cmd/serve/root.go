package serve

import (
	"bytes"

	"github.com/obinexus/polycall-sub002/cmd/util"
	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/conn"
	"github.com/obinexus/polycall-sub002/protocol/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start a polycall protocol server",
		Long:  `Start a protocol server that answers handshakes, authenticates clients when required, echoes commands and responds to pings. The configuration can be set via command line flags or environment variables with the POLYCALL_ prefix (e.g. POLYCALL_ENDPOINT=localhost:7070).`,
		RunE:  run,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupEngineFlags(ServeCmd)
}

// serverEvents verifies the shared auth token and logs failures.
type serverEvents struct {
	conn.NopEvents
	token []byte
}

func (e *serverEvents) OnAuthRequest(credentials []byte) bool {
	if len(e.token) == 0 {
		return true
	}
	return bytes.Equal(credentials, e.token)
}

func (e *serverEvents) OnError(err error) {
	server.Logger.Warningf("connection error: %v", err)
}

func run(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := util.GetConfig()
	if err != nil {
		return err
	}
	common.InitLoggers(config.LogLevel)

	connector, err := util.GetListenerConnector()
	if err != nil {
		return err
	}

	events := &serverEvents{token: []byte(viper.GetString("auth-token"))}
	s := server.New(config, connector, events)

	// Echo every command back as a response
	s.RegisterHandler(codec.TypeCommand, func(ctx *conn.ProtocolContext, msg *codec.Message) error {
		return ctx.Send(codec.TypeResponse, msg.Payload, codec.FlagAck)
	})

	return s.Serve()
}
