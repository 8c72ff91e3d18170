package ping

import (
	"fmt"
	"time"

	"github.com/obinexus/polycall-sub002/cmd/util"
	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/conn"
	"github.com/obinexus/polycall-sub002/protocol/pool"
	"github.com/obinexus/polycall-sub002/protocol/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Probe a polycall protocol server",
		Long:  `Establish a pooled connection, perform the protocol handshake (and authentication when required) and measure the round trip time of ping messages.`,
		RunE:  run,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupEngineFlags(PingCmd)

	PingCmd.Flags().Int("count", 4, util.WrapString("Number of pings to send"))
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

	connector, err := util.GetConnector()
	if err != nil {
		return err
	}

	// Every pooled connection dials the endpoint and performs the
	// handshake before it is handed out.
	factory := func() (*conn.ProtocolContext, error) {
		endpoint, err := connector.Dial(config.Transport)
		if err != nil {
			return nil, err
		}

		ctx, err := conn.New(endpoint, config, nil)
		if err != nil {
			endpoint.Close()
			return nil, err
		}

		if err := ctx.StartHandshake(); err != nil {
			ctx.Close()
			return nil, err
		}
		if err := ctx.ProcessNext(); err != nil { // handshake ack
			ctx.Close()
			return nil, err
		}

		if config.Protocol.RequireAuth {
			if err := ctx.Authenticate([]byte(viper.GetString("auth-token"))); err != nil {
				ctx.Close()
				return nil, err
			}
			if err := ctx.ProcessNext(); err != nil { // auth response
				ctx.Close()
				return nil, err
			}
		}

		if s := ctx.State(); s != state.StateReady {
			ctx.Close()
			return nil, fmt.Errorf("connection not ready after handshake (state %s)", s)
		}
		return ctx, nil
	}

	p, err := pool.New(config.Pool, factory)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.WarmUp(config.Pool.Size); err != nil {
		return err
	}

	pc, err := p.Acquire(time.Duration(config.Transport.TimeoutSecond) * time.Second)
	if err != nil {
		return err
	}
	defer p.Release(pc)

	ctx := pc.Context()
	count := viper.GetInt("count")

	for i := 0; i < count; i++ {
		start := time.Now()
		if err := ctx.Send(codec.TypePing, nil, codec.FlagRequiresAck); err != nil {
			return err
		}
		if err := ctx.ProcessNext(); err != nil { // pong
			return err
		}
		fmt.Printf("pong from %s: seq=%d time=%s\n", ctx.Endpoint().RemoteAddr(), i+1, time.Since(start))
	}

	stats := p.Stats()
	fmt.Printf("\npool: size=%d idle=%d acquires=%d\n", stats.Size, stats.Idle, stats.Acquires)

	return nil
}
