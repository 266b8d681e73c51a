package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

func (a *App) getStatus() string {
	var parts []string
	if s := a.currentSession(); s != nil {
		parts = append(parts, s.Username)
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	if a.library != nil && a.isLoggedIn() {
		if n, err := a.library.PendingCount(context.Background()); err == nil && n > 0 {
			parts = append(parts, fmt.Sprintf("%d pending", n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Root runs the interactive session until the user exits. The cached session
// is resumed when there is one, otherwise the user is asked to log in.
func (a *App) Root(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to whattodo (type 'help' for commands)")

	a.resumeSession(ctx)
	if !a.isLoggedIn() {
		if err := a.Login(ctx, nil); err != nil {
			fmt.Fprintln(a.out, "Error:", err)
		}
	}
	a.Start(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
