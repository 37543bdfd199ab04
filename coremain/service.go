package coremain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmkol/gqlx/mlog"
	"github.com/pmkol/gqlx/pkg/safe_close"
)

var svcCfg = &service.Config{
	Name:        "gqlx",
	DisplayName: "gqlx",
	Description: "Caching and retrying GraphQL gateway.",
}

var svc service.Service

type serverService struct {
	f  *serverFlags
	sc *safe_close.SafeClose
}

func (ss *serverService) Start(s service.Service) error {
	mlog.L().Info("starting service", zap.String("platform", s.Platform()))
	ss.sc = safe_close.NewSafeClose()
	go func() {
		if err := StartServer(ss.f, ss.sc); err != nil {
			mlog.L().Error("server exited", zap.Error(err))
			os.Exit(1)
		}
	}()
	return nil
}

func (ss *serverService) Stop(s service.Service) error {
	mlog.L().Info("service is shutting down")
	if ss.sc != nil {
		ss.sc.CloseWait()
	}
	return nil
}

// initService is the PersistentPreRunE of the service command. It creates
// svc for the sub commands.
func initService(_ *cobra.Command, _ []string) error {
	s, err := service.New(&serverService{}, svcCfg)
	if err != nil {
		return fmt.Errorf("cannot init service, %w", err)
	}
	svc = s
	return nil
}

func newSvcInstallCmd() *cobra.Command {
	sf := new(serverFlags)
	c := &cobra.Command{
		Use:   "install [-d working_dir] [-c config_file]",
		Short: "Install gqlx as a system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sf.dir) == 0 {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current working directory, %w", err)
				}
				sf.dir = wd
			} else {
				absDir, err := filepath.Abs(sf.dir)
				if err != nil {
					return fmt.Errorf("failed to get abs path of the working dir, %w", err)
				}
				sf.dir = absDir
			}

			svcCfg.Arguments = []string{"start", "--as-service", "-d", sf.dir}
			if len(sf.c) > 0 {
				svcCfg.Arguments = append(svcCfg.Arguments, "-c", sf.c)
			}
			s, err := service.New(&serverService{f: sf}, svcCfg)
			if err != nil {
				return fmt.Errorf("cannot init service, %w", err)
			}
			return s.Install()
		},
		SilenceUsage: true,
	}
	c.Flags().StringVarP(&sf.dir, "dir", "d", "", "working dir")
	c.Flags().StringVarP(&sf.c, "config", "c", "", "config file")
	return c
}

func newSvcUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall gqlx from system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.Uninstall()
		},
		SilenceUsage: true,
	}
}

func newSvcStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start gqlx system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.Start()
		},
		SilenceUsage: true,
	}
}

func newSvcStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop gqlx system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.Stop()
		},
		SilenceUsage: true,
	}
}

func newSvcRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart gqlx system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.Restart()
		},
		SilenceUsage: true,
	}
}

func newSvcStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Status of gqlx system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := svc.Status()
			if err != nil {
				return fmt.Errorf("cannot get service status, %w", err)
			}
			var out string
			switch s {
			case service.StatusRunning:
				out = "running"
			case service.StatusStopped:
				out = "stopped"
			default:
				out = "unknown"
			}
			fmt.Println(out)
			return nil
		},
		SilenceUsage: true,
	}
}
