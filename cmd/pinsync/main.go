package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eerkela/pinsync/internal/collection"
	"github.com/eerkela/pinsync/internal/config"
	pserrors "github.com/eerkela/pinsync/internal/errors"
	"github.com/eerkela/pinsync/internal/logging"
	"github.com/eerkela/pinsync/internal/manifest"
	"github.com/eerkela/pinsync/internal/pinterest"
	"github.com/eerkela/pinsync/internal/rules"
	"github.com/eerkela/pinsync/internal/state"
	"github.com/eerkela/pinsync/internal/sync"
	"github.com/eerkela/pinsync/internal/watch"
)

var Version = "dev"

func main() {
	// Handle the logout subcommand before config validation; it needs
	// no download directory.
	if len(os.Args) > 1 && os.Args[1] == "logout" {
		if err := logout(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// logout invalidates the remote session and drops the cached token.
func logout() error {
	appState, err := state.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	token := appState.Token()
	if token == "" {
		fmt.Println("no active session")
		return nil
	}

	client := pinterest.NewClient(nil, os.Getenv("PINTEREST_API_URL"))
	client.SetToken(token)

	if err := client.SignOut(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: remote sign-out failed: %v\n", err)
	}

	if err := appState.SetToken(""); err != nil {
		return fmt.Errorf("clearing cached token: %w", err)
	}

	fmt.Println("signed out")

	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("pinsync starting",
		slog.String("version", Version),
		slog.String("download_dir", cfg.DownloadDir),
		slog.Int("workers", cfg.Workers),
		slog.Bool("watch", cfg.Watch),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appState, err := state.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	client := pinterest.NewClient(nil, cfg.APIBaseURL)

	if err := authenticate(ctx, client, cfg, appState, logger); err != nil {
		return err
	}

	syncRules, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("loading sync rules: %w", err)
	}

	store := collection.NewLocalStore(cfg.DownloadDir, logger, nil)
	manifests := manifest.New(logger)
	confirmer := sync.NewConsoleConfirmer(os.Stdin, os.Stdout)
	engine := sync.NewEngine(client, store, manifests, confirmer, logger, cfg.Workers)
	manager := sync.NewManager(client, store, engine, syncRules, appState, logger, cfg.DownloadDir, cfg.Workers)

	pass := func(ctx context.Context) error {
		err := manager.Run(ctx)
		if errors.Is(err, pserrors.ErrNotAuthenticated) {
			// Session expired mid-run; sign in fresh and retry once.
			logger.Info("session expired, signing in again")

			if err := signIn(ctx, client, cfg, appState, logger); err != nil {
				return err
			}

			return manager.Run(ctx)
		}

		return err
	}

	if err := pass(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	logger.Info("sync complete")

	if !cfg.Watch {
		return nil
	}

	watcher := watch.NewWatcher(cfg.DownloadDir, logger, pass)

	if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch mode: %w", err)
	}

	logger.Info("shutting down")

	return nil
}

// authenticate reuses the cached session token when the API still
// accepts it, signing in fresh otherwise.
func authenticate(ctx context.Context, client *pinterest.Client, cfg *config.Config, appState *state.State, logger *slog.Logger) error {
	if token := appState.Token(); token != "" {
		logger.Debug("trying cached session token")
		client.SetToken(token)

		if _, err := client.Boards(ctx); err == nil {
			logger.Info("authenticated with cached token")
			return nil
		} else if !errors.Is(err, pserrors.ErrNotAuthenticated) {
			return fmt.Errorf("verifying cached token: %w", err)
		}

		logger.Debug("cached token rejected, signing in fresh")
		client.SetToken("")
	}

	return signIn(ctx, client, cfg, appState, logger)
}

func signIn(ctx context.Context, client *pinterest.Client, cfg *config.Config, appState *state.State, logger *slog.Logger) error {
	logger.Info("signing in", slog.String("email", cfg.Email))

	token, err := client.SignIn(ctx, cfg.Email, cfg.Password, cfg.Username)
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}

	if err := appState.SetToken(token); err != nil {
		logger.Warn("failed to cache session token", slog.String("error", err.Error()))
	}

	logger.Info("signed in", slog.String("username", cfg.Username))

	return nil
}
