package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind            string
	cataloguePath   string
	logJSON         bool
	playbackEnabled bool
	playbackBaseURL string
	playbackClient  string
	playbackSecret  string
	playbackDevice  string
	port            int
	prefix          string
	profile         bool
	roundDuration   time.Duration
	sessionIdle     time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.cataloguePath == "" {
		return errors.New("--catalogue is required")
	}
	if c.roundDuration <= 0 {
		return errors.New("--round-duration must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SPEKTRUM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "spektrum",
		Short:         "A realtime multiplayer trivia game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SPEKTRUM_BIND)")
	fs.StringVar(&cfg.cataloguePath, "catalogue", "", "path to the question catalogue JSON file (env: SPEKTRUM_CATALOGUE)")
	fs.BoolVar(&cfg.logJSON, "log-json", false, "emit structured logs as JSON instead of text (env: SPEKTRUM_LOG_JSON)")
	fs.BoolVar(&cfg.playbackEnabled, "playback-enabled", false, "notify an external playback controller on round start (env: SPEKTRUM_PLAYBACK_ENABLED)")
	fs.StringVar(&cfg.playbackBaseURL, "playback-base-url", "", "base URL of the playback controller (env: SPEKTRUM_PLAYBACK_BASE_URL)")
	fs.StringVar(&cfg.playbackClient, "playback-client-id", "", "client id for the playback controller (env: SPEKTRUM_PLAYBACK_CLIENT_ID)")
	fs.StringVar(&cfg.playbackSecret, "playback-client-secret", "", "client secret for the playback controller (env: SPEKTRUM_PLAYBACK_CLIENT_SECRET)")
	fs.StringVar(&cfg.playbackDevice, "playback-device-id", "", "target device id for the playback controller (env: SPEKTRUM_PLAYBACK_DEVICE_ID)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SPEKTRUM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SPEKTRUM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SPEKTRUM_PROFILE)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", 15*time.Second, "time players have to answer each question (env: SPEKTRUM_ROUND_DURATION)")
	fs.DurationVar(&cfg.sessionIdle, "session-idle", 60*time.Minute, "time an empty lobby survives before being reaped (env: SPEKTRUM_SESSION_IDLE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SPEKTRUM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SPEKTRUM_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SPEKTRUM_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SPEKTRUM_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("spektrum v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
