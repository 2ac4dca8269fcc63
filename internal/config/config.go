// Package config loads server and client configuration from TOML files
// in a platform-appropriate per-user config directory, falling back to
// built-in defaults for any key the file omits or for a missing file
// entirely.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	serverFileName = "greld.toml"
	clientFileName = "grel.toml"
	configSubdir   = "grel"
)

// Defaults mirror the reference implementation's compile-time constants;
// any value a config file omits falls back to one of these.
const (
	DefaultAddress            = "127.0.0.1:51516"
	DefaultServerTick         = 500 * time.Millisecond
	DefaultByteLimit          = 512
	DefaultBytesPerTick       = 6
	DefaultBlackoutToPing     = 10 * time.Second
	DefaultBlackoutToKick     = 20 * time.Second
	DefaultRosterWidth        = 24
	DefaultLobbyName          = "Lobby"
	DefaultWelcome            = "Welcome to a grel server."
	DefaultClientTick         = 100 * time.Millisecond
	DefaultBlockTimeout       = 5 * time.Second
	DefaultReadSize        = 1024
	DefaultAcceptPerSecond = 20
	DefaultName            = "grel user"
	DefaultPidFile         = "greld.pid"
)

// ConfigDir returns the platform-appropriate per-user directory this
// package's config files live in, creating it if necessary.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, configSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// serverFile is the on-disk shape of greld.toml. Every field is a
// pointer so an absent key is distinguishable from an explicit zero
// value.
type serverFile struct {
	Address           *string `toml:"address"`
	TickMS            *int64  `toml:"tick_ms"`
	BlackoutToPingMS  *int64  `toml:"blackout_to_ping_ms"`
	BlackoutToKickMS  *int64  `toml:"blackout_to_kick_ms"`
	MaxUserNameLength *int    `toml:"max_user_name_length"`
	MaxRoomNameLength *int    `toml:"max_room_name_length"`
	LobbyName         *string `toml:"lobby_name"`
	Welcome           *string `toml:"welcome"`
	ByteLimit         *int    `toml:"byte_limit"`
	BytesPerTick      *int    `toml:"bytes_per_tick"`
	PidFile           *string `toml:"pid_file"`
	StatusAddr        *string `toml:"status_addr"`
	AcceptPerSec      *int    `toml:"accept_per_sec"`
	DevLogging        *bool   `toml:"dev_logging"`
	LogFile           *string `toml:"log_file"`
	LogLevel          *string `toml:"log_level"`
}

// Server holds the fully-resolved configuration a server process runs
// with, every default already applied.
type Server struct {
	Address            string
	MinTick            time.Duration
	BlackoutToPing     time.Duration
	BlackoutToKick     time.Duration
	MaxUserNameLength  int
	MaxRoomNameLength  int
	LobbyName          string
	Welcome            string
	ByteLimit          int
	BytesPerTick       int
	PidFile            string
	StatusAddr         string
	AcceptPerSec       int
	DevLogging         bool
	LogFile            string
	LogLevel           string
}

// LoadServer reads greld.toml from the per-user config directory, or
// returns all-default configuration if it can't be found or read.
func LoadServer() (Server, error) {
	var f serverFile
	dir, err := ConfigDir()
	if err == nil {
		path := filepath.Join(dir, serverFileName)
		if data, readErr := os.ReadFile(path); readErr == nil {
			if decErr := toml.Unmarshal(data, &f); decErr != nil {
				return Server{}, fmt.Errorf("config: parsing %s: %w", path, decErr)
			}
		}
	}
	return Server{
		Address:           strOr(f.Address, DefaultAddress),
		MinTick:           msOr(f.TickMS, DefaultServerTick),
		BlackoutToPing:    msOr(f.BlackoutToPingMS, DefaultBlackoutToPing),
		BlackoutToKick:    msOr(f.BlackoutToKickMS, DefaultBlackoutToKick),
		MaxUserNameLength: intOr(f.MaxUserNameLength, DefaultRosterWidth),
		MaxRoomNameLength: intOr(f.MaxRoomNameLength, DefaultRosterWidth),
		LobbyName:         strOr(f.LobbyName, DefaultLobbyName),
		Welcome:           strOr(f.Welcome, DefaultWelcome),
		ByteLimit:         intOr(f.ByteLimit, DefaultByteLimit),
		BytesPerTick:      intOr(f.BytesPerTick, DefaultBytesPerTick),
		PidFile:           strOr(f.PidFile, DefaultPidFile),
		StatusAddr:        strOr(f.StatusAddr, ""),
		AcceptPerSec:      intOr(f.AcceptPerSec, DefaultAcceptPerSecond),
		DevLogging:        f.DevLogging != nil && *f.DevLogging,
		LogFile:           strOr(f.LogFile, ""),
		LogLevel:          strOr(f.LogLevel, ""),
	}, nil
}

// clientFile is the on-disk shape of grel.toml.
type clientFile struct {
	Address  *string `toml:"address"`
	Name     *string `toml:"name"`
	TickMS   *int64  `toml:"timeout_ms"`
	BlockMS  *int64  `toml:"block_ms"`
	ReadSize *int    `toml:"read_size"`
	LogLevel *string `toml:"log_level"`
}

// Client holds the fully-resolved configuration a client process runs
// with, every default already applied.
type Client struct {
	Address  string
	Name     string
	Tick     time.Duration
	Block    time.Duration
	ReadSize int
	LogLevel string
}

// LoadClient reads grel.toml, preferring the current directory over the
// per-user config directory, falling back to all-default configuration.
func LoadClient() (Client, error) {
	var f clientFile
	candidates := []string{clientFileName}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, clientFileName))
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if decErr := toml.Unmarshal(data, &f); decErr != nil {
			return Client{}, fmt.Errorf("config: parsing %s: %w", path, decErr)
		}
		break
	}
	return Client{
		Address:  strOr(f.Address, DefaultAddress),
		Name:     strOr(f.Name, DefaultName),
		Tick:     msOr(f.TickMS, DefaultClientTick),
		Block:    msOr(f.BlockMS, DefaultBlockTimeout),
		ReadSize: intOr(f.ReadSize, DefaultReadSize),
		LogLevel: strOr(f.LogLevel, "warn"),
	}, nil
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func msOr(p *int64, def time.Duration) time.Duration {
	if p == nil {
		return def
	}
	return time.Duration(*p) * time.Millisecond
}
