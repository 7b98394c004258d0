package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/colormatch-server/util"
	"github.com/judgegodwins/colormatch-server/ws"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config *util.Config
	hub    *ws.Hub
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(config *util.Config, hub *ws.Hub, logger *zap.Logger) *Server {
	router := gin.New()

	server := &Server{
		config: config,
		hub:    hub,
		router: router,
		logger: logger.Named("http"),
	}

	router.Use(server.RequestLogger, server.Recovery)

	router.GET("/ws", hub.ServeWS)
	router.GET("/rooms", server.ListRooms)
	router.GET("/rooms/:id", server.GetRoom)
	router.GET("/health", server.Health)

	return server
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	options := cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}

	if len(options.AllowedOrigins) == 0 {
		options.AllowedOrigins = []string{"*"}
	}

	return cors.New(options).Handler(s.router)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
