package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/ije/gox/term"
	"github.com/spf13/cobra"

	"vite.dev/core/devserver"
	"vite.dev/core/internal/config"
)

func newServeCommand() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dev server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if cfgPath != "" {
				loaded, err := config.LoadConfig(cfgPath)
				if err != nil {
					fmt.Println(term.Red("[error] " + err.Error()))
					return err
				}
				cfg = loaded
			}

			srv, err := devserver.New(cfg)
			if err != nil {
				fmt.Println(term.Red("[error] failed to initialize dev server: " + err.Error()))
				return err
			}

			color.Green("vite.dev/core serving %s on http://%s:%d", cfg.Root, cfg.Host, cfg.Port)

			ctx, cancel := context.WithCancel(context.Background())
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				cancel()
			}()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a devserver.jsonc config file")
	return cmd
}
