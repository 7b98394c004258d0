package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/colormatch-server/api"
	"github.com/judgegodwins/colormatch-server/util"
	"github.com/judgegodwins/colormatch-server/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	envFile string
	port    string
)

var rootCmd = &cobra.Command{
	Use:   "colormatch-server",
	Short: "Realtime room server for the colour matching game",
	Long: `colormatch-server hosts multiplayer rooms over WebSocket.

Players create or join a room by code, the host picks a target colour and
starts a round, and the round ends once every player has submitted a score.
Room state lives in memory only.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}

		config, err := util.LoadConfig(files...)
		if err != nil {
			return fmt.Errorf("cannot load config: %w", err)
		}

		if port != "" {
			config.Port = port
			if err := util.Validate.Struct(config); err != nil {
				return fmt.Errorf("invalid --port: %w", err)
			}
		}

		logger, err := util.NewLogger(config.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, config, logger)
	},
}

func serve(ctx context.Context, config *util.Config, logger *zap.Logger) error {
	if config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := ws.NewHub(config, logger)
	server := api.NewServer(config, hub, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return server.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "path of a .env file to load (default .env)")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on, overrides PORT")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
