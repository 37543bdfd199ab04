package coremain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pmkol/gqlx/mlog"
	"github.com/pmkol/gqlx/pkg/auth"
	"github.com/pmkol/gqlx/pkg/gqlerror"
)

func newQueryCmd() *cobra.Command {
	var (
		cfgFile string
		query   string
		vars    string
		timeout time.Duration
	)
	c := &cobra.Command{
		Use:   "query [-c config_file] -q query [--vars json]",
		Short: "Run one query through the executor and print the response.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("fail to load config, %w", err)
			}
			var variables map[string]any
			if len(vars) > 0 {
				if err := json.Unmarshal([]byte(vars), &variables); err != nil {
					return fmt.Errorf("invalid variables, %w", err)
				}
			}

			lg, err := mlog.NewLogger(&cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			m, err := NewGqlx(cfg, lg)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			resp, err := m.Execute(ctx, query, variables)
			if resp != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
			}
			if err != nil {
				var ge *gqlerror.Error
				if errors.As(err, &ge) {
					mlog.L().Debug("query failed", zap.Error(ge.Cause))
					return fmt.Errorf("%s: %s", ge.Kind, ge.Message)
				}
				return err
			}
			return nil
		},
		SilenceUsage: true,
	}
	fs := c.Flags()
	fs.StringVarP(&cfgFile, "config", "c", "", "config file")
	fs.StringVarP(&query, "query", "q", "", "query text")
	fs.StringVar(&vars, "vars", "", "variables as a json object")
	fs.DurationVar(&timeout, "timeout", time.Minute, "overall timeout, retries included")
	_ = c.MarkFlagRequired("query")
	return c
}

func newTokenCmd() *cobra.Command {
	var cfgFile string
	withSession := func(f func(ctx context.Context, s *auth.Session) error) error {
		cfg, _, err := loadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("fail to load config, %w", err)
		}
		store, err := newCredentialStore(&cfg.Credential, mlog.L())
		if err != nil {
			return fmt.Errorf("failed to init credential store, %w", err)
		}
		if c, ok := store.(io.Closer); ok {
			defer c.Close()
		}
		p, err := auth.NewProvider(auth.ProviderOpts{Store: store, Key: cfg.Credential.Key, Logger: mlog.L()})
		if err != nil {
			return err
		}
		return f(context.Background(), auth.NewSession(p))
	}

	c := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored session token.",
	}
	c.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file")
	c.AddCommand(
		&cobra.Command{
			Use:   "set <token>",
			Short: "Store a token.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(ctx context.Context, s *auth.Session) error {
					return s.Login(ctx, args[0])
				})
			},
			SilenceUsage: true,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored token.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(ctx context.Context, s *auth.Session) error {
					return s.Logout(ctx)
				})
			},
			SilenceUsage: true,
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored token, redacted.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(ctx context.Context, s *auth.Session) error {
					token, ok, err := s.Token(ctx)
					if err != nil {
						return err
					}
					switch {
					case !ok:
						fmt.Fprintln(cmd.OutOrStdout(), "no token")
					case !auth.ValidToken(token):
						fmt.Fprintln(cmd.OutOrStdout(), "malformed token", auth.Redact(token))
					default:
						fmt.Fprintln(cmd.OutOrStdout(), auth.Redact(token))
					}
					return nil
				})
			},
			SilenceUsage: true,
		},
	)
	return c
}

func newConfigCmd() *cobra.Command {
	var cfgFile string
	c := &cobra.Command{
		Use:   "config [-c config_file]",
		Short: "Print the effective config, defaults included.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("fail to load config, %w", err)
			}
			return dumpConfig(cmd.OutOrStdout(), cfg)
		},
		SilenceUsage: true,
	}
	c.Flags().StringVarP(&cfgFile, "config", "c", "", "config file")
	return c
}

// dumpConfig writes cfg as yaml. Secrets are masked.
func dumpConfig(w io.Writer, cfg *Config) error {
	c := *cfg
	if len(c.Credential.Redis.Password) > 0 {
		c.Credential.Redis.Password = "***"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return err
	}
	return enc.Close()
}
