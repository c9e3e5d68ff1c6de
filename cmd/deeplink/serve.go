package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vango-dev/deeplink/internal/config"
	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/chihost"
	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/middleware"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
	"github.com/vango-dev/deeplink/pkg/wshost"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	port       int
	host       string
	routes     string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deep-link server",
		Long: `Start the deep-link server.

Every route in the route file is served as a page. Pages connect back
over WebSocket and keep their fields in sync with the address bar.

Configuration is read from deeplink.json in the working directory or
the nearest parent; DEEPLINK_HOST, DEEPLINK_PORT and DEEPLINK_LOG_LEVEL
override it.

Examples:
  deeplink serve
  deeplink serve --port=9000 --routes=routes.yaml
  deeplink serve --config=deploy/deeplink.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to deeplink.json")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default from deeplink.json)")
	cmd.Flags().StringVarP(&opts.host, "host", "H", "", "Host to bind to (default from deeplink.json)")
	cmd.Flags().StringVarP(&opts.routes, "routes", "r", "", "Route file (default from deeplink.json)")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadServeConfig(opts)
	if err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := loadRoutes(ctx, cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := newApp(cfg, table, logger, registry)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", srv.Addr, "routes", len(table.Routes))
		errCh <- srv.ListenAndServe()
	}()

	out := cmd.OutOrStdout()
	success(out, "Serving %d routes at %s", len(table.Routes), cfg.URL())
	info(out, "WebSocket: %s", cfg.WebSocket.Path)
	if cfg.Metrics.Enabled {
		info(out, "Metrics:   %s", cfg.Metrics.Path)
	}

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-shutdown:
		logger.Info("shutting down...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	app.sessions.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}

// loadServeConfig reads deeplink.json and applies environment and flag
// overrides.
func loadServeConfig(opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if errors.HasCode(err, errors.CodeConfigNotFound) && opts.configPath == "" {
		// Run on defaults when no project file exists.
		cfg, err = config.New(), nil
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if opts.port > 0 {
		cfg.Port = opts.port
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.routes != "" {
		cfg.Routes = opts.routes
		cfg.RoutesSource = config.RoutesFromFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadRoutes reads the route table from disk or S3.
func loadRoutes(ctx context.Context, cfg *config.Config) (*syncconfig.RouteTable, error) {
	if cfg.RoutesSource != config.RoutesFromS3 {
		return syncconfig.LoadFile(cfg.RoutesPath())
	}

	client := s3.New(s3.Options{
		Region:      cfg.S3.Region,
		Credentials: aws.NewCredentialsCache(envCredentials(os.Getenv)),
	})
	return syncconfig.NewS3Source(client, cfg.S3.Bucket, cfg.S3.Key).Load(ctx)
}

// envCredentials reads static AWS credentials from the standard
// environment variables.
func envCredentials(getenv func(string) string) aws.CredentialsProviderFunc {
	return func(context.Context) (aws.Credentials, error) {
		creds := aws.Credentials{
			AccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    getenv("AWS_SESSION_TOKEN"),
			Source:          "EnvironmentVariables",
		}
		if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
			return aws.Credentials{}, errors.New(errors.CodeSourceFailed).
				WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set to read routes from S3.")
		}
		return creds, nil
	}
}

// app is the HTTP surface of the server.
type app struct {
	http.Handler

	sessions *wshost.Handler
	router   *chihost.Router
}

// newApp mounts one page per route, the WebSocket endpoint and, when
// enabled, the metrics endpoint.
func newApp(cfg *config.Config, table *syncconfig.RouteTable, logger *slog.Logger, registry *prometheus.Registry) (*app, error) {
	readTimeout, err := cfg.ReadTimeout()
	if err != nil {
		return nil, err
	}

	pages := chi.NewRouter()
	for _, pattern := range table.Patterns() {
		tmpl, err := urltemplate.Parse(pattern)
		if err != nil && err != urltemplate.ErrNoTemplate {
			return nil, errors.New(errors.CodeInvalidDeclaration).WithRoute(pattern).Wrap(err)
		}
		pages.Get(chihost.Pattern(tmpl), pageHandler(cfg.WebSocket.Path))
	}
	router := chihost.New(pages)

	tracer := otel.Tracer(cfg.Tracing.ServiceName)

	var metrics *deeplink.Metrics
	if cfg.Metrics.Enabled {
		metrics = deeplink.NewMetrics(deeplink.WithRegistry(registry))
	}

	sessions := wshost.NewHandler(&wshost.Config{
		Router:      router,
		Source:      table,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
		ReadTimeout: readTimeout,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing(tracer))
	if cfg.Metrics.Enabled {
		r.Use(middleware.NewHTTPMetrics(middleware.WithRegistry(registry)).Handler)
		promauto.With(registry).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "deeplink",
			Name:      "websocket_sessions",
			Help:      "Number of connected browser sessions",
		}, func() float64 {
			return float64(sessions.SessionCount())
		})
	}
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Handle(cfg.WebSocket.Path, sessions)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	r.Mount("/", pages)

	return &app{Handler: r, sessions: sessions, router: router}, nil
}
