package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/whattodo/internal/client/reconciler"
	"github.com/dmitrijs2005/whattodo/internal/filex"
)

// Sync pushes queued changes now and then refreshes the mirror.
func (a *App) Sync(ctx context.Context, _ []string) error {
	rep, err := a.scheduler.RunNow(ctx)
	if err != nil {
		return err
	}
	printReport(a.out, rep)
	if !rep.Settled() {
		fmt.Fprintln(a.out, "Server unreachable for some changes; they stay queued.")
		return nil
	}
	if err := a.library.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Fprintln(a.out, "Up to date.")
	return nil
}

// Refresh pulls the user's data from the server into the local mirror.
func (a *App) Refresh(ctx context.Context, _ []string) error {
	if err := a.library.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Refreshed.")
	return nil
}

// Pending prints how many changes wait for the server and how the last
// pass went.
func (a *App) Pending(ctx context.Context, _ []string) error {
	n, err := a.library.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d change(s) waiting to sync\n", n)
	if rep, at := a.scheduler.LastReport(); rep != nil {
		fmt.Fprintf(a.out, "Last sync %s: ", at.Local().Format("15:04:05"))
		printReport(a.out, rep)
	}
	return nil
}

// Export writes every list and item as JSON to the given file, or to the
// terminal without one.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return usage("export [file]")
	}
	if len(args) == 0 {
		return a.library.Export(ctx, a.out)
	}

	f, err := filex.CreateFile(args[0])
	if err != nil {
		return err
	}
	if err := a.library.Export(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s\n", args[0])
	return nil
}

func printReport(w io.Writer, rep *reconciler.Report) {
	fmt.Fprintf(w, "%d synced, %d waiting, %d rejected\n", rep.Synced, rep.Transient, len(rep.Rejected))
	for _, rj := range rep.Rejected {
		fmt.Fprintf(w, "  rejected %s %s (%s): %v\n", rj.Entity, shortID(rj.EntityID), rj.Intent, rj.Err)
	}
}
