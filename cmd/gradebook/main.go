package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/gradebook/internal/cache"
	"github.com/pavelanni/gradebook/internal/grading"
	"github.com/pavelanni/gradebook/internal/handler"
	appI18n "github.com/pavelanni/gradebook/internal/i18n"
	"github.com/pavelanni/gradebook/internal/llm"
	"github.com/pavelanni/gradebook/internal/llm/prompts"
	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/seed"
	"github.com/pavelanni/gradebook/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradebook",
		Short: "Assignment grading and exam result service",
	}

	serve := serveCmd()
	root.AddCommand(serve, seedCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addDBFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "gradebook.db", "Database DSN (SQLite path or PostgreSQL URL)")
	f.String("db-driver", store.DriverSQLite, "Database driver (sqlite, postgres)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables the grading assistant)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Essay prompt variant (strict, standard, lenient)")
	f.Duration("listing-ttl", 30*time.Second, "Assignment listing cache TTL (0 disables)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /api)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set GRADEBOOK_ADMIN_PASSWORD)")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, subjects and the academic calendar from JSON fixtures",
		RunE:  runSeed,
	}
	addDBFlags(cmd)
	cmd.Flags().StringSliceP("fixtures", "f", nil, "Paths to fixture JSON files (repeatable)")
	_ = cmd.MarkFlagRequired("fixtures")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.Int64("period", 0, "Only export results of this academic period ID (0 = all)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradebook")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradebook")
	v.AddConfigPath("/etc/gradebook")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db-driver"), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seed.Admin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// The assistant is optional; grading works without it.
	var assistant grading.Assistant
	if url := v.GetString("llm-url"); url != "" {
		promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(promptVariant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
			promptVariant = string(prompts.PromptStandard)
		}
		client, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), promptVariant)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"), "variant", promptVariant)
		assistant = client
	}

	listings := cache.NewListings(v.GetDuration("listing-ttl"))
	svc := grading.New(db, listings, assistant)

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	h := handler.New(db, svc, model.Config{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Lang:          lang,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(appI18n.Middleware())
	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	go cleanupSessions(ctx, db)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"lang", lang,
		"assistant", assistant != nil,
		"listing_ttl", v.GetDuration("listing-ttl"),
		"base_path", basePath,
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cleanupSessions(ctx context.Context, db *store.Store) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := db.CleanupExpiredSessions(ctx); err != nil {
				slog.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range v.GetStringSlice("fixtures") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := seed.Fixture(ctx, db, path, data); err != nil {
			return err
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	var periodID *int64
	if id := v.GetInt64("period"); id > 0 {
		periodID = &id
	}
	rows, err := db.ExportExamResults(ctx, periodID)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	if rows == nil {
		rows = []model.ResultRow{}
	}

	export := model.ResultExport{
		GeneratedAt: time.Now().UTC(),
		PeriodID:    periodID,
		NumResults:  len(rows),
		Results:     rows,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", len(rows), "output", outPath)
	return nil
}
