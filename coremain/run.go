package coremain

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pmkol/gqlx/mlog"
	"github.com/pmkol/gqlx/pkg/safe_close"
)

type serverFlags struct {
	c         string
	dir       string
	cpu       int
	asService bool
}

var rootCmd = &cobra.Command{
	Use:   "gqlx",
	Short: "Caching and retrying GraphQL gateway.",
}

func init() {
	sf := new(serverFlags)
	startCmd := &cobra.Command{
		Use:   "start [-c config_file] [-d working_dir]",
		Short: "Start gqlx main program.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sf.asService {
				svc, err := service.New(&serverService{f: sf}, svcCfg)
				if err != nil {
					return fmt.Errorf("failed to init service, %w", err)
				}
				return svc.Run()
			}
			return StartServer(sf, nil)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	rootCmd.AddCommand(startCmd)
	fs := startCmd.Flags()
	fs.StringVarP(&sf.c, "config", "c", "", "config file")
	fs.StringVarP(&sf.dir, "dir", "d", "", "working dir")
	fs.IntVar(&sf.cpu, "cpu", 0, "set runtime.GOMAXPROCS")
	fs.BoolVar(&sf.asService, "as-service", false, "start as a service")
	fs.MarkHidden("as-service")

	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage gqlx as a system service.",
	}
	serviceCmd.PersistentPreRunE = initService
	serviceCmd.AddCommand(
		newSvcInstallCmd(),
		newSvcUninstallCmd(),
		newSvcStartCmd(),
		newSvcStopCmd(),
		newSvcRestartCmd(),
		newSvcStatusCmd(),
	)
	rootCmd.AddCommand(serviceCmd)

	rootCmd.AddCommand(newQueryCmd(), newTokenCmd(), newConfigCmd())
}

func AddSubCmd(c *cobra.Command) {
	rootCmd.AddCommand(c)
}

func Run() error {
	return rootCmd.Execute()
}

// StartServer loads the config and runs the gateway until sc is closed or a
// fatal error happens. A nil sc makes the gateway stop on SIGINT/SIGTERM.
func StartServer(sf *serverFlags, sc *safe_close.SafeClose) error {
	if sf.cpu > 0 {
		runtime.GOMAXPROCS(sf.cpu)
	}

	if len(sf.dir) > 0 {
		err := os.Chdir(sf.dir)
		if err != nil {
			return fmt.Errorf("failed to change the current working directory, %w", err)
		}
		mlog.L().Info("working directory changed", zap.String("path", sf.dir))
	}

	cfg, v, err := loadConfig(sf.c)
	if err != nil {
		return fmt.Errorf("fail to load config, %w", err)
	}

	if err := RunGqlx(cfg, v, sc); err != nil {
		return fmt.Errorf("gqlx exited, %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("endpoint.transport", "http")
	v.SetDefault("endpoint.timeout", 10*time.Second)
	v.SetDefault("executor.max_retries", 2)
	v.SetDefault("executor.backoff_unit", time.Second)
	v.SetDefault("cache.capacity", 500)
	v.SetDefault("cache.sweep_interval", 5*time.Minute)
	v.SetDefault("credential.backend", "memory")
	v.SetDefault("diagnostics.log_size", 100)
}

// loadConfig load a config from a file. If filePath is empty, it will
// automatically search and load a file which name start with "config".
// The returned viper instance can be used to watch the file.
func loadConfig(filePath string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decoderOpt(cfg *mapstructure.DecoderConfig) {
	cfg.ErrorUnused = true
	cfg.TagName = "yaml"
	cfg.WeaklyTypedInput = true
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	cfg := new(Config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.Endpoint.URL) == 0 {
		return fmt.Errorf("endpoint.url is required")
	}
	switch strings.ToLower(cfg.Endpoint.Transport) {
	case "", "http", "h3":
	default:
		return fmt.Errorf("unknown endpoint.transport %q", cfg.Endpoint.Transport)
	}
	if cfg.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", cfg.Cache.Capacity)
	}
	switch strings.ToLower(cfg.Credential.Backend) {
	case "", "memory", "redis", "badger":
	default:
		return fmt.Errorf("unknown credential.backend %q", cfg.Credential.Backend)
	}
	return nil
}
