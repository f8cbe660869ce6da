package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bgdnvk/resonance/internal/logging"
	"github.com/bgdnvk/resonance/internal/mcpserver"
	"github.com/bgdnvk/resonance/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP or MCP",
	Long: `Start the HTTP API (POST /api/chat, POST /api/retrieve, GET /api/audit,
GET /healthz) or, with --mcp, expose the chat and retrieve tools over stdio.

SIGHUP reloads the knowledge index without dropping requests.

Examples:
  resonance serve --addr :8080
  resonance serve --mcp --log-file /tmp/resonance.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		useMCP, _ := cmd.Flags().GetBool("mcp")
		logFile, _ := cmd.Flags().GetString("log-file")

		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			logger = logging.NewWriter(f, cfg.Debug)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.watchReload(ctx) })

		if useMCP {
			srv := mcpserver.New(a.orch, Version, logger.Named("mcp"))
			g.Go(func() error {
				err := srv.ServeStdio()
				stop()
				return err
			})
			return g.Wait()
		}

		srv := server.New(cfg.ServerAddr, a.orch, a.auditReader(), logger.Named("http"))
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// watchReload swaps in a freshly loaded index on every SIGHUP.
func (a *app) watchReload(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if a.artifact == nil {
				logger.Warn("No knowledge store configured; ignoring reload")
				continue
			}
			if err := a.retriever.Reload(ctx, a.artifact); err != nil {
				logger.Error("Knowledge reload failed; keeping current index", zap.Error(err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr, :8080)")
	serveCmd.Flags().Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	serveCmd.Flags().String("log-file", "", "write logs to this file instead of stderr")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}
