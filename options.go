package nats

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/adred-codev/natscore/internal/transport"
)

// Options configures a connection, enumerating the fields of spec.md §6.
type Options struct {
	URL  string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Name string `env:"NATS_NAME"`

	PingInterval time.Duration `env:"NATS_PING_INTERVAL" envDefault:"2m"`
	PingTimeout  time.Duration `env:"NATS_PING_TIMEOUT" envDefault:"10s"`
	MaxPingsOut  int           `env:"NATS_MAX_PINGS_OUT" envDefault:"2"`

	ReconnectDelayMin time.Duration `env:"NATS_RECONNECT_DELAY_MIN" envDefault:"200ms"`
	ReconnectDelayMax time.Duration `env:"NATS_RECONNECT_DELAY_MAX" envDefault:"8s"`
	ReconnectJitter   float64       `env:"NATS_RECONNECT_JITTER" envDefault:"0.1"`
	MaxReconnects     int           `env:"NATS_MAX_RECONNECTS" envDefault:"-1"` // -1 = forever

	// ReconnectRateLimit caps dial attempts per second beyond what the
	// exponential backoff already paces, guarding against a server list
	// that keeps failing fast (e.g. connection-refused) from spinning the
	// supervisor tighter than the backoff curve intends. 0 disables the cap.
	ReconnectRateLimit float64 `env:"NATS_RECONNECT_RATE_LIMIT" envDefault:"0"`
	ReconnectRateBurst int     `env:"NATS_RECONNECT_RATE_BURST" envDefault:"5"`

	CommandWriterBufferSize  int           `env:"NATS_WRITER_BUFFER_SIZE" envDefault:"4096"`
	SubscriptionCleanupInterval time.Duration `env:"NATS_SUB_CLEANUP_INTERVAL" envDefault:"1m"`
	InboxPrefix              string        `env:"NATS_INBOX_PREFIX"`

	TLSMode               transport.TLSMode
	TLSConfig              *tls.Config
	TLSInsecureSkipVerify bool `env:"NATS_TLS_INSECURE_SKIP_VERIFY"`

	Auth AuthOptions

	DialTimeout  time.Duration `env:"NATS_DIAL_TIMEOUT" envDefault:"2s"`
	FlushTimeout time.Duration `env:"NATS_FLUSH_TIMEOUT" envDefault:"5s"`

	Logger  zerolog.Logger
	Metrics MetricsHook

	ConnectedCB    func(*Conn)
	DisconnectedCB func(*Conn, error)
	ReconnectingCB func(*Conn)
	ReconnectedCB  func(*Conn)
	ClosedCB       func(*Conn)
	ErrorCB        func(*Conn, *Subscription, error)
}

// AuthOptions mirrors spec.md §6's "auth.*" fields.
type AuthOptions struct {
	Token           string `env:"NATS_AUTH_TOKEN"`
	User            string `env:"NATS_AUTH_USER"`
	Pass            string `env:"NATS_AUTH_PASS"`
	JWT             string `env:"NATS_AUTH_JWT"`
	NKeySeed        string `env:"NATS_AUTH_NKEY_SEED"`
	CredentialsFile string `env:"NATS_AUTH_CREDENTIALS_FILE"`
}

// MetricsHook is the type of Options.Metrics, kept as an interface here so
// the root package does not force prometheus on every caller. The connection
// stores Options.Metrics but never calls it, and *internal/metrics.Registry
// does not implement this interface.
type MetricsHook interface {
	ObserveReconnect()
	ObserveInMsg(bytes int)
	ObserveOutMsg(bytes int)
	ObserveActiveSubs(n int)
}

// DefaultOptions returns Options with every default from spec.md §6
// applied, connecting to a local server.
func DefaultOptions() Options {
	return Options{
		URL:                         "nats://127.0.0.1:4222",
		PingInterval:                2 * time.Minute,
		PingTimeout:                 10 * time.Second,
		MaxPingsOut:                 2,
		ReconnectDelayMin:           200 * time.Millisecond,
		ReconnectDelayMax:           8 * time.Second,
		ReconnectJitter:             0.1,
		MaxReconnects:               -1,
		ReconnectRateBurst:          5,
		CommandWriterBufferSize:     4096,
		SubscriptionCleanupInterval: time.Minute,
		DialTimeout:                 2 * time.Second,
		FlushTimeout:                5 * time.Second,
		TLSMode:                     transport.TLSPrefer,
		Logger:                      zerolog.Nop(),
	}
}

// OptionsFromEnv seeds Options from process environment variables (not
// config *files*, which stay an external collaborator per spec.md §1),
// following go-server-2's caarlos0/env struct-tag pattern. Non-env fields
// (callbacks, TLS config, logger, metrics hook) retain DefaultOptions'
// zero values and must be set programmatically afterward.
func OptionsFromEnv() (Options, error) {
	opts := DefaultOptions()
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("nats: parse options from env: %w", err)
	}
	return opts, nil
}

// Option mutates Options; applied in order by Connect.
type Option func(*Options)

func WithName(name string) Option { return func(o *Options) { o.Name = name } }

func WithLogger(l zerolog.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithMetrics(m MetricsHook) Option { return func(o *Options) { o.Metrics = m } }

func WithTLS(mode transport.TLSMode, cfg *tls.Config) Option {
	return func(o *Options) { o.TLSMode = mode; o.TLSConfig = cfg }
}

func WithAuth(a AuthOptions) Option { return func(o *Options) { o.Auth = a } }

func WithMaxReconnects(n int) Option { return func(o *Options) { o.MaxReconnects = n } }

func WithReconnectWait(min, max time.Duration) Option {
	return func(o *Options) { o.ReconnectDelayMin = min; o.ReconnectDelayMax = max }
}

func WithReconnectRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) { o.ReconnectRateLimit = perSecond; o.ReconnectRateBurst = burst }
}

func WithPingInterval(d time.Duration) Option { return func(o *Options) { o.PingInterval = d } }

func WithConnectHandler(cb func(*Conn)) Option    { return func(o *Options) { o.ConnectedCB = cb } }
func WithDisconnectHandler(cb func(*Conn, error)) Option {
	return func(o *Options) { o.DisconnectedCB = cb }
}
func WithReconnectingHandler(cb func(*Conn)) Option { return func(o *Options) { o.ReconnectingCB = cb } }
func WithReconnectedHandler(cb func(*Conn)) Option  { return func(o *Options) { o.ReconnectedCB = cb } }
func WithClosedHandler(cb func(*Conn)) Option       { return func(o *Options) { o.ClosedCB = cb } }
func WithErrorHandler(cb func(*Conn, *Subscription, error)) Option {
	return func(o *Options) { o.ErrorCB = cb }
}
