package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/core/eval"
	"github.com/wardenhq/warden/core/parser"
	"github.com/wardenhq/warden/internal/cli"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/storage/postgres"
)

var (
	serverAddr string
	serverDB   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the health endpoint, wiring the evaluator to Postgres",
	Long: `Start a minimal HTTP server exposing only /healthz.

server's purpose is to prove the Evaluator, the schema, and the
Postgres collaborators wire together and that the database is
reachable; it does not expose a permission-check network API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := resolveString(serverAddr, cfg.Server.Addr)
		dsn := resolveString(serverDB, cfg.Database.URL)
		if dsn == "" {
			var err error
			dsn, err = cfg.DSN()
			if err != nil {
				return cli.ConfigError("resolving database connection", err)
			}
		}
		return runServer(cmd.Context(), addr, dsn)
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address")
	serverCmd.Flags().StringVar(&serverDB, "db", "", "database URL")
}

func runServer(ctx context.Context, addr, dsn string) error {
	logger, err := logging.New(verbose, quiet)
	if err != nil {
		return cli.GeneralError("building logger", err)
	}
	defer func() { _ = logger.Sync() }()

	content, err := os.ReadFile(cfg.Schema)
	if err != nil {
		return cli.SchemaParseError("reading schema file", err)
	}
	sch, errs := parser.Parse(string(content), cfg.Schema)
	if len(errs) > 0 {
		return cli.SchemaParseError("schema has errors", errs[0])
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return cli.DBConnectError("pinging database", err)
	}

	if err := postgres.NewMigrator(pool).Migrate(ctx); err != nil {
		return cli.DBConnectError("applying migrations", err)
	}

	store := postgres.New(pool)
	evaluator := eval.New(sch, store, store, cfg.NetworkID)
	evaluator.MaxDepth = cfg.Server.MaxDepth

	logger.Info("evaluator ready",
		zap.Int("namespaces", len(evaluator.Schema.Namespaces)),
		zap.Int("max_depth", evaluator.MaxDepth))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler(pool, logger))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           requestIDMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return serveUntilSignal(httpServer, logger)
}

// requestIDMiddleware mints a v4 UUID per request (via the root
// module's google/uuid, the same library EnsureUUID uses to mint
// tuple mappings) and logs it at debug level alongside the request
// path.
func requestIDMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		logger.Debug("request", zap.String("request_id", requestID), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func healthzHandler(pool *pgxpool.Pool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("healthz: database unreachable", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// serveUntilSignal runs srv until SIGINT/SIGTERM, then shuts it down
// within a bounded timeout.
func serveUntilSignal(srv *http.Server, logger *zap.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return cli.GeneralError("shutting down server", err)
		}
		return nil
	case err := <-errChan:
		return cli.GeneralError("server failed", err)
	}
}
