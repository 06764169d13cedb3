package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	goSession "github.com/MrEthical07/goSession"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	instanceURL string
	redisAddr   string
	namespace   string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "gosession",
	Short: "Drive an instance session from the command line",
	Long: `gosession logs in to an instance, completes OAuth authorization, refreshes
tokens and logs out. Credentials are kept in Redis between invocations when an
address is configured, so each command picks up where the previous one left off.

Configuration is read from --config (YAML) with GOSESSION_* environment
variables applied on top; flags override both.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.StringVar(&instanceURL, "instance", "", "instance root URL")
	flags.StringVar(&redisAddr, "redis", "", "Redis address used to persist credentials")
	flags.StringVar(&namespace, "namespace", "", "credential namespace in Redis")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func loadConfig() (goSession.Config, error) {
	var (
		cfg goSession.Config
		err error
	)
	if configPath != "" {
		cfg, err = goSession.LoadConfigFile(configPath, true)
	} else {
		cfg, err = goSession.LoadConfigFromEnv()
	}
	if err != nil {
		return goSession.Config{}, err
	}

	if instanceURL != "" {
		cfg.Server.InstanceURL = instanceURL
	}
	if redisAddr != "" {
		cfg.Persistence.RedisAddr = redisAddr
	}
	if namespace != "" {
		cfg.Persistence.Namespace = namespace
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openEngine builds an engine for one command. The returned func releases the
// engine and its Redis client.
func openEngine(cfg goSession.Config, out io.Writer) (*goSession.Engine, func(), error) {
	b := goSession.New().
		WithConfig(cfg).
		WithNavigator(printNavigator{out: out})

	release := func() {}
	if cfg.Persistence.Enabled && cfg.Persistence.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Persistence.RedisAddr})
		b = b.WithRedis(client)
		release = func() { _ = client.Close() }
	}

	engine, err := b.Build()
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, func() {
		engine.Close()
		release()
	}, nil
}

// withEngine loads the configuration and runs fn with a fresh engine.
func withEngine(cmd *cobra.Command, fn func(*goSession.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, release, err := openEngine(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer release()
	return fn(engine)
}

// printNavigator stands in for a user agent: it prints where the user would
// be sent.
type printNavigator struct {
	out io.Writer
}

func (n printNavigator) Navigate(_ context.Context, path string) error {
	_, err := fmt.Fprintf(n.out, "navigate: %s\n", path)
	return err
}

func (n printNavigator) Redirect(_ context.Context, url string) error {
	_, err := fmt.Fprintf(n.out, "open in a browser: %s\n", url)
	return err
}
