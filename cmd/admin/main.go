package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-element-manager/internal/config"
	"go-element-manager/internal/controller"
	"go-element-manager/internal/events"
	"go-element-manager/internal/lexicon"
	"go-element-manager/internal/policy"
	"go-element-manager/internal/storage"
	"go-element-manager/internal/templating"
	"go-element-manager/internal/tracing"
	"go-element-manager/web/admin"
)

// adminApplication holds the application-wide dependencies for the admin server.
type adminApplication struct {
	cfg     config.Config
	logger  *slog.Logger
	store   storage.ChunkStore
	acl     *policy.ACL
	events  *events.Dispatcher
	lexicon *lexicon.Lexicon
	views   *templating.Engine
	static  fs.FS
}

// newApplication wires the collaborators described by cfg. The caller owns
// the returned store and must close it.
func newApplication(cfg config.Config, logger *slog.Logger) (*adminApplication, error) {
	store, err := storage.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	logger.Info("Using chunk store", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	lexFS := lexicon.Embedded()
	if cfg.Lexicon.Dir != "" {
		lexFS = os.DirFS(cfg.Lexicon.Dir)
		logger.Info("Using lexicon directory", "path", cfg.Lexicon.Dir)
	}
	lex, err := lexicon.New(lexFS, lexicon.WithCacheTTL(cfg.Lexicon.CacheTTL))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	logger.Info("Lexicon ready", "locales", lex.Locales(), "cache_ttl", cfg.Lexicon.CacheTTL)

	views, err := templating.NewEngine(admin.Templates(), controllerTemplates...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create template cache: %w", err)
	}
	logger.Info("Admin UI templates cached successfully", "pages", views.Pages())

	dispatcher := events.NewDispatcher(logger)
	registerPlugins(dispatcher, cfg.Plugins)

	return &adminApplication{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		acl:     policy.NewACL(cfg.Access),
		events:  dispatcher,
		lexicon: lex,
		views:   views,
		static:  admin.Static(),
	}, nil
}

// Every page template a controller may name through TemplateFile.
var controllerTemplates = []string{
	controller.ChunkUpdateTemplate,
}

func (app *adminApplication) controllerDeps() controller.Deps {
	return controller.Deps{
		Store:  app.store,
		Policy: app.acl,
		Events: app.events,
		Settings: controller.Settings{
			UseEditor:  app.cfg.UseEditor,
			ManagerURL: app.cfg.ManagerURL,
		},
		Logger: app.logger,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "admin",
		Short:        "Element manager admin server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./element-manager.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the manager pages and API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().String("listen", config.Defaults().Listen, "listen address")
	serveCmd.Flags().Bool("use-editor", false, "enable the rich text editor")
	_ = v.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("use_editor", serveCmd.Flags().Lookup("use-editor"))

	root.AddCommand(serveCmd)
	return root
}

// reloadOnSignal drops the cached lexicon topics whenever sig fires, so edited
// locale files are served without a restart.
func (app *adminApplication) reloadOnSignal(ctx context.Context, sig <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			app.lexicon.Flush()
			app.logger.Info("Lexicon cache flushed")
		}
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := cfg.NewLogger(os.Stdout)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize admin application", "error", err)
		return err
	}
	defer app.store.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go app.reloadOnSignal(ctx, hup)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting admin server", "address", cfg.Listen, "manager_url", cfg.ManagerURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down admin server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
