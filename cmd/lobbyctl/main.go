package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/client"
	"github.com/DoyleJ11/second-law-lobby/internal/config"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
	"github.com/DoyleJ11/second-law-lobby/internal/session"
)

const releaseVersion = "0.1.0"

func main() {
	cobra.CheckErr(config.LoadEnv())
	cfg := &config.Participant{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Participant) *cobra.Command {
	root := &cobra.Command{
		Use:           "lobbyctl",
		Short:         "Headless lobby participant for poking at a running coordinator.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Bind(cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}
	cfg.RegisterFlags(root.PersistentFlags())

	host := &cobra.Command{
		Use:   "host [code]",
		Short: "Create a room and start the game once every player is ready",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := room.GenerateCode(rand.New(rand.NewSource(time.Now().UnixNano())))
			if len(args) == 1 {
				code = args[0]
			}
			return run(cmd.Context(), cfg, func(ctx context.Context, c *client.Client) error {
				return c.CreateRoom(ctx, code, cfg.Skin)
			})
		},
	}

	var ready bool
	join := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a room as a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cfg.Name
			if name == "" {
				name = "player-" + room.GenerateCode(rand.New(rand.NewSource(time.Now().UnixNano())))
			}
			return run(cmd.Context(), cfg, func(ctx context.Context, c *client.Client) error {
				if err := c.JoinRoom(ctx, args[0], name, cfg.Skin); err != nil {
					return err
				}
				if !ready {
					return nil
				}
				// Ignored by the coordinator if the join was refused.
				return c.SetReady(ctx, true)
			})
		},
	}
	join.Flags().BoolVar(&ready, "ready", false, "mark ready right after joining")

	root.AddCommand(host, join)
	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetHelpCommand(&cobra.Command{Hidden: true})
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// run connects, performs first, then prints room activity until interrupted
// or the connection is lost for good.
func run(parent context.Context, cfg *config.Participant, first func(context.Context, *client.Client) error) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var c *client.Client
	mirror := session.New(ctx,
		session.WithPresenter(newPrinter(os.Stdout)),
		session.WithStarter(session.StarterFunc(func() error { return c.SendGameStart() })),
		session.WithLogger(log.Named("session")),
	)
	defer mirror.Close()

	c, err = client.Dial(ctx, cfg.URL, mirror, client.DefaultOptions(), log.Named("client"))
	if err != nil {
		return err
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if err := first(ctx, c); err != nil {
		return err
	}

	err = <-done
	if ctx.Err() != nil {
		return nil
	}
	return err
}
