package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/client/reconciler"
	"github.com/dmitrijs2005/whattodo/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password and creates the account.
// The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context, _ []string) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, userName, password); err != nil {
		if errors.Is(err, client.ErrAlreadyExists) {
			return fmt.Errorf("username %q is taken", userName)
		}
		return err
	}

	fmt.Fprintln(a.out, "Success! You can log in now.")
	return nil
}

// Login prompts for credentials and signs in. When the authority cannot be
// reached the cached credentials are checked instead and the session starts
// offline; queued changes are pushed once the authority answers again.
func (a *App) Login(ctx context.Context, args []string) error {
	var (
		userName string
		err      error
	)
	if len(args) > 0 {
		userName = args[0]
	} else if userName, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.auth.Login(ctx, userName, password)
	if err != nil {
		a.logger.Warn(ctx, "login unsuccessful", "username", userName, "error", err)
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			return errors.New("wrong username or password")
		case errors.Is(err, client.ErrUnavailable):
			return errors.New("server unavailable and no cached login for this user")
		}
		return err
	}
	a.setSession(s)

	if s.Offline {
		fmt.Fprintln(a.out, "Logged in offline. Changes will sync when the server is back.")
		return nil
	}
	fmt.Fprintln(a.out, "Logged in.")
	a.scheduler.Trigger(reconciler.ReasonForeground)
	if err := a.library.Refresh(ctx); err != nil {
		a.logger.Warn(ctx, "refresh after login failed", "error", err)
	}
	return nil
}

// Logout ends the session. Queued changes stay in the outbox and are pushed
// the next time the same user signs in.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.setSession(nil)
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// resumeSession picks up the cached session so the REPL starts signed in.
func (a *App) resumeSession(ctx context.Context) {
	s, err := a.auth.Current(ctx)
	if err != nil {
		return
	}
	a.setSession(s)
}
