package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/client/config"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/whattodo/internal/client/routing"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the client command tree. Without a subcommand the
// interactive REPL starts. Flags are read by config.LoadConfig from the
// process arguments, so subcommands must come first:
//
//	whattodo sync -a authority:50051
//	whattodo serve -listen 127.0.0.1:8080 -o https://whattodo.app
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "whattodo",
		Short: "Offline-first client for whattodo lists",
		Long: `Keeps your whattodo lists in a local database, queues every change
and pushes it to the server when it is reachable.`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runInteractive,
	}

	root.AddCommand(
		&cobra.Command{
			Use:                "repl",
			Short:              "Start the interactive shell (default)",
			Args:               cobra.ArbitraryArgs,
			DisableFlagParsing: true,
			RunE:               runInteractive,
		},
		syncCmd(),
		statusCmd(),
		serveCmd(),
	)
	return root
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := NewApp(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	a.out = cmd.OutOrStdout()
	defer a.Close()

	return fn(ctx, a)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *App) error {
		a.Root(ctx)
		return nil
	})
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "sync",
		Short:              "Push queued changes, refresh the mirror, then exit",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				a.resumeSession(ctx)
				if !a.isLoggedIn() {
					return errNotLoggedIn
				}
				return a.syncOnce(ctx)
			})
		},
	}
}

// syncOnce runs one pass and a refresh with a progress bar.
func (a *App) syncOnce(ctx context.Context) error {
	bar := progressbar.NewOptions(2,
		progressbar.OptionSetWriter(a.out),
		progressbar.OptionSetDescription("Pushing changes"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)

	rep, err := a.scheduler.RunNow(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	_ = bar.Add(1)

	if !rep.Settled() {
		_ = bar.Finish()
		printReport(a.out, rep)
		return errors.New("server unreachable for some changes; they stay queued")
	}

	bar.Describe("Refreshing")
	if err := a.library.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	_ = bar.Add(1)
	_ = bar.Finish()

	printReport(a.out, rep)
	fmt.Fprintln(a.out, "Sync completed successfully.")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "status",
		Short:              "Show session, connectivity and queued changes",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				a.monitor.Check(ctx)
				return a.printStatus(ctx, a.out)
			})
		},
	}
}

func (a *App) printStatus(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "=== whattodo status ===")
	fmt.Fprintf(w, "Server:   %s (%s)\n", a.config.ServerEndpointAddr, modeOrUnknown(a.mode()))
	fmt.Fprintf(w, "Database: %s\n", a.config.DatabasePath)

	s, err := a.auth.Current(ctx)
	if err != nil {
		fmt.Fprintln(w, "User:     not logged in")
		return nil
	}
	fmt.Fprintf(w, "User:     %s\n", s.Username)

	n, err := a.library.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Pending:  %d change(s)\n", n)

	last, err := metadata.NewSQLiteRepository(a.db).Get(ctx, metadata.KeyLastSync)
	if err != nil {
		return err
	}
	if last != nil {
		if t, err := dbx.ParseTime(string(last)); err == nil {
			fmt.Fprintf(w, "Refreshed: %s\n", t.Local().Format(time.RFC3339))
		}
	}
	return nil
}

func modeOrUnknown(m routing.Mode) string {
	if m == routing.ModeUnknown {
		return "unknown"
	}
	return string(m)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "serve",
		Short:              "Serve the web app with offline fallback and background sync",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				a.resumeSession(ctx)
				return a.serve(ctx)
			})
		},
	}
}

// serve runs the routing layer on the configured listen address until ctx
// is done. Entity sync runs alongside when a session is cached.
func (a *App) serve(ctx context.Context) error {
	cache := routing.NewCache(a.db, routing.CacheName)
	router, err := routing.NewRouter(cache, a.monitor, a.logger, routing.Options{
		Origin:         a.config.OriginURL,
		Bypass:         a.config.BypassPatterns,
		PrecacheAssets: a.config.PrecacheAssets,
	})
	if err != nil {
		return err
	}

	if err := router.Activate(ctx); err != nil {
		return fmt.Errorf("activate cache: %w", err)
	}
	if n, err := router.Precache(ctx); err != nil {
		a.logger.Warn(ctx, "precache incomplete", "stored", n, "error", err)
	}
	go router.RunRefresher(ctx, a.config.AssetRefreshInterval)

	if a.isLoggedIn() {
		a.Start(ctx)
	} else {
		go a.monitor.Watch(ctx, a.config.OnlineCheckInterval)
	}

	srv := &http.Server{
		Addr:              a.config.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info(ctx, "routing layer listening", "addr", a.config.ListenAddr, "origin", a.config.OriginURL)
	fmt.Fprintf(a.out, "Serving %s on http://%s. Press Ctrl+C to stop.\n", a.config.OriginURL, a.config.ListenAddr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
