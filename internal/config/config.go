package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SECONDLAW"

// Server holds everything cmd/server needs.
type Server struct {
	Bind string
	Port int

	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	OutboxSize   int

	AllowedOrigins []string
	RateLimit      int
	PublicURL      string

	ResetReadyOnRename bool
	DatabaseDSN        string
	Verbose            bool
}

func (s *Server) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&s.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: SECONDLAW_BIND)")
	flags.IntVarP(&s.Port, "port", "p", 8080, "port to listen on (env: SECONDLAW_PORT)")
	flags.DurationVar(&s.PingInterval, "ping-interval", 25*time.Second, "websocket keepalive interval, 0 disables (env: SECONDLAW_PING_INTERVAL)")
	flags.DurationVar(&s.ReadTimeout, "read-timeout", 60*time.Second, "drop connections silent for this long (env: SECONDLAW_READ_TIMEOUT)")
	flags.DurationVar(&s.WriteTimeout, "write-timeout", 3*time.Second, "per-message write deadline (env: SECONDLAW_WRITE_TIMEOUT)")
	flags.IntVar(&s.OutboxSize, "outbox-size", 32, "messages buffered per connection before it is dropped (env: SECONDLAW_OUTBOX_SIZE)")
	flags.StringSliceVar(&s.AllowedOrigins, "allowed-origins", nil, "CORS and websocket origin patterns (env: SECONDLAW_ALLOWED_ORIGINS)")
	flags.IntVar(&s.RateLimit, "rate-limit", 120, "HTTP requests per minute per IP and endpoint, 0 disables (env: SECONDLAW_RATE_LIMIT)")
	flags.StringVar(&s.PublicURL, "public-url", "", "base URL encoded in room QR codes (env: SECONDLAW_PUBLIC_URL)")
	flags.BoolVar(&s.ResetReadyOnRename, "reset-ready-on-rename", false, "clear a player's ready flag when they rename (env: SECONDLAW_RESET_READY_ON_RENAME)")
	flags.StringVar(&s.DatabaseDSN, "database-dsn", "", "postgres DSN for room history, empty disables (env: SECONDLAW_DATABASE_DSN)")
	flags.BoolVarP(&s.Verbose, "verbose", "v", false, "debug logging (env: SECONDLAW_VERBOSE)")
}

func (s *Server) Validate() error {
	var errs []error
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", s.Port))
	}
	if s.PingInterval < 0 {
		errs = append(errs, fmt.Errorf("ping interval must not be negative: %s", s.PingInterval))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read timeout must be positive: %s", s.ReadTimeout))
	}
	if s.PingInterval > 0 && s.ReadTimeout > 0 && s.PingInterval >= s.ReadTimeout {
		errs = append(errs, fmt.Errorf("ping interval %s must be shorter than read timeout %s", s.PingInterval, s.ReadTimeout))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write timeout must be positive: %s", s.WriteTimeout))
	}
	if s.OutboxSize < 1 {
		errs = append(errs, fmt.Errorf("outbox size must be at least 1: %d", s.OutboxSize))
	}
	if s.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative: %d", s.RateLimit))
	}
	if s.PublicURL != "" {
		if u, err := url.Parse(s.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("public url must be absolute: %q", s.PublicURL))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.Bind, strconv.Itoa(s.Port))
}

// Participant holds the lobbyctl settings.
type Participant struct {
	URL     string
	Name    string
	Skin    string
	Verbose bool
}

func (p *Participant) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&p.URL, "url", "u", "ws://localhost:8080/ws", "coordinator websocket URL (env: SECONDLAW_URL)")
	flags.StringVarP(&p.Name, "name", "n", "", "display name when joining (env: SECONDLAW_NAME)")
	flags.StringVarP(&p.Skin, "skin", "s", "default", "skin identifier (env: SECONDLAW_SKIN)")
	flags.BoolVarP(&p.Verbose, "verbose", "v", false, "debug logging (env: SECONDLAW_VERBOSE)")
}

func (p *Participant) Validate() error {
	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", p.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url must use ws or wss: %q", p.URL)
	}
	return nil
}

// LoadEnv reads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Bind fills every flag the user did not set from its SECONDLAW_ variable.
func Bind(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}
