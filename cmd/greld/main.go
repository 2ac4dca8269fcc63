// Command greld is the grel chat server: it binds a TCP listener,
// admits and negotiates new connections on its own goroutine, and
// drives the single-threaded Room Processor tick loop on main.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/d2718/grel/internal/config"
	"github.com/d2718/grel/internal/listener"
	"github.com/d2718/grel/internal/logging"
	"github.com/d2718/grel/internal/pidfile"
	"github.com/d2718/grel/internal/room"
	"github.com/d2718/grel/internal/status"
)

// version is populated via -ldflags at release build time.
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "greld",
		Usage:   "run the grel chat server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "override the listen address from greld.toml",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "use colorized development-mode logging instead of JSON",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "raise the minimum log level to warn",
			},
			&cli.StringFlag{
				Name:  "pidfile",
				Usage: "override the pid file path from greld.toml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "inspect configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the fully-resolved server configuration",
						Action: showConfig,
					},
				},
			},
			{
				Name:   "version",
				Usage:  "print the server version",
				Action: func(c *cli.Context) error { fmt.Println(version); return nil },
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// showConfig prints the fully-resolved server configuration (defaults
// applied) without binding a listener, for operators to sanity-check
// greld.toml before starting the real process.
func showConfig(c *cli.Context) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	fmt.Printf("address:              %s\n", cfg.Address)
	fmt.Printf("tick:                 %s\n", cfg.MinTick)
	fmt.Printf("lobby_name:           %s\n", cfg.LobbyName)
	fmt.Printf("welcome:              %s\n", cfg.Welcome)
	fmt.Printf("byte_limit:           %s\n", humanize.Bytes(uint64(cfg.ByteLimit)))
	fmt.Printf("bytes_per_tick:       %s\n", humanize.Bytes(uint64(cfg.BytesPerTick)))
	fmt.Printf("blackout_to_ping:     %s\n", cfg.BlackoutToPing)
	fmt.Printf("blackout_to_kick:     %s\n", cfg.BlackoutToKick)
	fmt.Printf("max_user_name_length: %d\n", cfg.MaxUserNameLength)
	fmt.Printf("max_room_name_length: %d\n", cfg.MaxRoomNameLength)
	pidPath := cfg.PidFile
	if pidPath == "" {
		pidPath = pidfile.DefaultPath
	}
	fmt.Printf("pid_file:             %s\n", pidPath)
	fmt.Printf("status_addr:          %s\n", orNone(cfg.StatusAddr))
	fmt.Printf("accept_per_sec:       %d\n", cfg.AcceptPerSec)
	fmt.Printf("dev_logging:          %t\n", cfg.DevLogging)
	fmt.Printf("log_file:             %s\n", orNone(cfg.LogFile))
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "(default)"
	}
	fmt.Printf("log_level:            %s\n", logLevel)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

func run(c *cli.Context) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if addr := c.String("address"); addr != "" {
		cfg.Address = addr
	}
	dev := cfg.DevLogging || c.Bool("dev")
	if err := logging.Initialize(dev, c.Bool("quiet"), cfg.LogFile, cfg.LogLevel); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Sync()
	log := logging.L()

	pidPath := cfg.PidFile
	if p := c.String("pidfile"); p != "" {
		pidPath = p
	}
	// Written unconditionally at startup: the pid file is the one piece
	// of state this server persists.
	if err := pidfile.Write(pidPath); err != nil {
		log.Warn("failed to write pidfile", zap.Error(err))
	} else {
		defer func() {
			if err := pidfile.Remove(pidPath); err != nil {
				log.Warn("failed to remove pidfile", zap.Error(err))
			}
		}()
	}

	state := room.NewState(cfg.LobbyName)
	incoming := make(chan *room.User, 64)
	processor := room.NewProcessor(state, room.Config{
		MinTick:           cfg.MinTick,
		ByteLimit:         cfg.ByteLimit,
		BytesPerTick:      cfg.BytesPerTick,
		BlackoutToPing:    cfg.BlackoutToPing,
		BlackoutToKick:    cfg.BlackoutToKick,
		MaxUserNameLength: cfg.MaxUserNameLength,
		MaxRoomNameLength: cfg.MaxRoomNameLength,
		LobbyName:         cfg.LobbyName,
		Welcome:           cfg.Welcome,
	}, log.Named("processor"), incoming)

	statusPub := status.NewPublisher(time.Now())
	processor.Status = statusPub

	lst := listener.New(listener.Config{
		Address:      cfg.Address,
		BlockTimeout: 5 * time.Second,
		AcceptPerSec: cfg.AcceptPerSec,
	}, incoming, log.Named("listener"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenerErr := make(chan error, 1)
	go func() { listenerErr <- lst.Run() }()

	statusSrv := status.New(statusPub, log.Named("status"))
	statusErr := make(chan error, 1)
	go func() { statusErr <- statusSrv.Run(ctx, cfg.StatusAddr) }()

	log.Info("greld starting",
		zap.String("address", cfg.Address),
		zap.String("status_addr", cfg.StatusAddr),
		zap.String("lobby", cfg.LobbyName),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case err := <-listenerErr:
			if err != nil {
				log.Error("listener stopped", zap.Error(err))
				return err
			}
		case err := <-statusErr:
			if err != nil {
				log.Warn("status server stopped", zap.Error(err))
			}
		default:
			processor.Tick(time.Now())
		}
	}
}
