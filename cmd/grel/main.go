// Command grel is a minimal non-interactive grel client: it connects,
// performs the Name handshake, optionally sends one line of text or a
// slash command, and prints whatever the server sends back for a fixed
// window (--listen-for), even if the connection closes earlier. A full terminal UI is
// out of scope; this exists for scripting and manual protocol testing.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/d2718/grel/internal/config"
	"github.com/d2718/grel/internal/frame"
	"github.com/d2718/grel/internal/wire"
)

func main() {
	app := &cli.App{
		Name:  "grel",
		Usage: "a minimal non-interactive grel client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Usage: "override the server address from grel.toml"},
			&cli.StringFlag{Name: "name", Usage: "override the display name from grel.toml"},
			&cli.DurationFlag{Name: "listen-for", Value: 3 * time.Second, Usage: "how long to print incoming messages before exiting"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if addr := c.String("address"); addr != "" {
		cfg.Address = addr
	}
	if name := c.String("name"); name != "" {
		cfg.Name = name
	}

	conn, err := net.DialTimeout("tcp", cfg.Address, cfg.Block)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Address, err)
	}
	defer conn.Close()

	fr, err := frame.New(conn)
	if err != nil {
		return fmt.Errorf("wrapping connection: %w", err)
	}

	nameBytes, err := wire.Encode(wire.Name(cfg.Name))
	if err != nil {
		return fmt.Errorf("encoding Name: %w", err)
	}
	if err := fr.BlockingSend(nameBytes, cfg.Tick); err != nil {
		return fmt.Errorf("sending Name: %w", err)
	}

	if arg := strings.Join(c.Args().Slice(), " "); arg != "" {
		msg := messageFor(arg)
		b, err := wire.Encode(msg)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		if err := fr.BlockingSend(b, cfg.Tick); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}

	fmt.Printf("connected as %q, listening until %s\n", cfg.Name, humanize.Time(time.Now().Add(c.Duration("listen-for"))))
	return printIncoming(fr, c.Duration("listen-for"), cfg.Tick)
}

// messageFor turns one command-line argument into a wire message: a
// leading slash selects Join/Priv/Block/Unblock/Logout by the first
// word; any other slash word, and anything else, is sent as plain Text.
func messageFor(arg string) wire.Msg {
	if !strings.HasPrefix(arg, "/") {
		return wire.Text{Lines: []string{arg}}
	}
	fields := strings.SplitN(arg[1:], " ", 2)
	cmd := strings.ToLower(fields[0])
	var rest string
	if len(fields) > 1 {
		rest = fields[1]
	}
	switch cmd {
	case "join":
		return wire.Join(rest)
	case "priv":
		target := strings.SplitN(rest, " ", 2)
		if len(target) == 2 {
			return wire.Priv{Who: target[0], Text: target[1]}
		}
		return wire.Text{Lines: []string{arg}}
	case "block":
		return wire.Block(rest)
	case "unblock":
		return wire.Unblock(rest)
	case "logout":
		return wire.Logout(rest)
	default:
		return wire.Text{Lines: []string{arg}}
	}
}

// printIncoming busy-polls fr for deadline, writing every decoded
// message to stdout as it arrives.
func printIncoming(fr *frame.Frame, deadline, tick time.Duration) error {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	limit := time.Now().Add(deadline)
	for time.Now().Before(limit) {
		msg, err := fr.BlockingGetDeadline(tick, tick*2)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s\n", describe(msg))
		out.Flush()
	}
	return nil
}

func describe(msg wire.Msg) string {
	switch m := msg.(type) {
	case wire.Text:
		return fmt.Sprintf("<%s> %s", m.Who, strings.Join(m.Lines, "\n"))
	case wire.Priv:
		return fmt.Sprintf("(priv from %s) %s", m.Who, m.Text)
	case wire.Info:
		return fmt.Sprintf("* %s", string(m))
	case wire.Err:
		return fmt.Sprintf("! %s", string(m))
	case wire.Misc:
		if m.Alt != "" {
			return fmt.Sprintf("* %s", m.Alt)
		}
		return fmt.Sprintf("* %s %v", m.What, m.Data)
	case wire.Logout:
		return fmt.Sprintf("disconnected: %s", string(m))
	case wire.Ping:
		return "(ping)"
	default:
		return fmt.Sprintf("%#v", m)
	}
}
