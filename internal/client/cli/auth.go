package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/client/client"
	"github.com/dmitrijs2005/gophsync/internal/common"
)

// Register prompts for an email and password and creates a new account.
func (a *App) Register(ctx context.Context) error {
	userName, err := readLine(a.reader, a.out, "Email")
	if err != nil {
		return err
	}

	password, err := readSecret(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Success!")
	return nil
}

// Login prompts for credentials and signs in.
//
// Online login opens the sync engine's readiness gate. If the server is
// unavailable the credentials are checked against the offline cache instead;
// local edits then work and are queued until the next online login. The
// resulting connectivity mode is:
//   - ModeOnline if online login succeeds,
//   - ModeOffline if offline login succeeds,
//   - ModeDisabled if both fail.
func (a *App) Login(ctx context.Context) error {
	userName, err := readLine(a.reader, a.out, "Email")
	if err != nil {
		return err
	}

	password, err := readSecret(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	var mode Mode
	masterKey, err := a.authService.OnlineLogin(ctx, userName, password)
	switch {
	case err == nil:
		fmt.Fprintln(a.out, "Login successful")
		mode = ModeOnline
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, trying offline login...")
		masterKey, err = a.authService.OfflineLogin(ctx, userName, password)
		if err != nil {
			fmt.Fprintf(a.out, "Offline login unsuccessful: %s\n", err.Error())
			mode = ModeDisabled
		} else {
			fmt.Fprintln(a.out, "Offline login successful, changes will sync once the server is back")
			mode = ModeOffline
		}
	default:
		fmt.Fprintf(a.out, "Login unsuccessful: %s\n", err.Error())
		mode = ModeDisabled
	}
	common.WipeByteArray(masterKey)

	a.mu.Lock()
	a.loggedIn = err == nil
	if a.loggedIn {
		a.userName = userName
	}
	a.mu.Unlock()
	a.setMode(mode)
	return nil
}

// Logout stops synchronisation and forgets the session. With wipe set the
// offline credential cache is cleared too.
func (a *App) Logout(ctx context.Context, wipe bool) error {
	a.authService.Logout(ctx)
	if wipe {
		if err := a.authService.ClearOfflineData(ctx); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.loggedIn = false
	a.userName = ""
	a.mu.Unlock()
	return nil
}
