package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omnigen/internal/api"
	"omnigen/internal/credential"
	"omnigen/internal/worker"
)

const serveLongDesc string = `Serve the studio HTTP API.

Chat transcripts and video jobs are kept in memory, or in redis when
redis is enabled so several instances can share them. Video jobs run in
the background on a bounded worker pool.`

const serveShortDesc string = "Run the HTTP API server"

type serveCommander struct {
	g    *globals
	addr string
}

func newServeCmd(g *globals) *cobra.Command {
	cmder := &serveCommander{g: g}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.addr, "listen", "l", "", "Address to listen on (overrides server_address)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	var selector *credential.StoreSelector
	a, err := newApp(ctx, c.g, appOptions{
		selector: func(a *app) (credential.Selector, error) {
			cipher, err := a.keyCipher()
			if err != nil {
				return nil, err
			}
			selector = credential.NewStoreSelector(a.keyStore(), cipher)
			return selector, nil
		},
	})
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	manager, err := worker.NewManager(a.videos, worker.Options{
		Dispatcher: worker.DispatcherConfig{
			MinWorkers:  cfg.BasicConfig.MinWorkers,
			MaxWorkers:  cfg.BasicConfig.MaxWorkers,
			QueueSize:   cfg.BasicConfig.QueueSize,
			IdleTimeout: cfg.WorkerIdleTimeout(),
		},
		ResultTTL: cfg.ResultTTL(),
		Redis:     a.redis,
		Logger:    a.logger.Named("worker"),
	})
	if err != nil {
		return fmt.Errorf("start video workers: %w", err)
	}
	defer manager.Close()

	sweepers := map[string]worker.Sweeper{"video jobs": manager}
	if a.memoryChat != nil {
		sweepers["chat transcripts"] = a.memoryChat
	}
	worker.StartCleaner(ctx, cfg.CleanInterval(), a.logger.Named("cleaner"), sweepers)

	if !cfg.BasicConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(api.Services{
		Chat:        a.chat,
		Images:      a.images,
		Speech:      a.speech,
		Videos:      manager,
		Credentials: selector,
	}, cfg.BasicConfig.MaxUploadBytes, a.logger.Named("api"))

	addr := c.addr
	if addr == "" {
		addr = cfg.BasicConfig.ServerAddress
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, a.logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("omnigen server starting",
			zap.String("listen", addr),
			zap.String("chat_provider", cfg.BasicConfig.ChatProvider),
			zap.Bool("redis", a.redis != nil))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
