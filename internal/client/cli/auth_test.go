package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dmitrijs2005/gophsync/internal/client/client"
)

func stubInputs(t *testing.T, username string, password []byte) {
	t.Helper()
	origLine, origSecret := readLine, readSecret
	readLine = func(*bufio.Reader, io.Writer, string) (string, error) { return username, nil }
	readSecret = func(io.Writer, string) ([]byte, error) { return append([]byte(nil), password...), nil }
	t.Cleanup(func() {
		readLine = origLine
		readSecret = origSecret
	})
}

type fakeAuth struct {
	// Register
	regUser string
	regPass []byte
	regErr  error

	// OnlineLogin
	onlineUser string
	onlinePass []byte
	onlineMK   []byte
	onlineErr  error

	// OfflineLogin
	offlineCalled bool
	offlineMK     []byte
	offlineErr    error

	logoutCalls int

	// ClearOfflineData
	clearCalled bool
	clearErr    error

	pingErr error
}

func (f *fakeAuth) Register(_ context.Context, user string, pass []byte) error {
	f.regUser, f.regPass = user, append([]byte(nil), pass...)
	return f.regErr
}
func (f *fakeAuth) OnlineLogin(_ context.Context, user string, pass []byte) ([]byte, error) {
	f.onlineUser, f.onlinePass = user, append([]byte(nil), pass...)
	return append([]byte(nil), f.onlineMK...), f.onlineErr
}
func (f *fakeAuth) OfflineLogin(_ context.Context, user string, pass []byte) ([]byte, error) {
	f.offlineCalled = true
	return append([]byte(nil), f.offlineMK...), f.offlineErr
}
func (f *fakeAuth) Logout(context.Context) { f.logoutCalls++ }
func (f *fakeAuth) ClearOfflineData(context.Context) error {
	f.clearCalled = true
	return f.clearErr
}
func (f *fakeAuth) Close(ctx context.Context) error { return nil }
func (f *fakeAuth) Ping(ctx context.Context) error  { return f.pingErr }

func newAuthApp(f *fakeAuth) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{authService: f, out: &out}, &out
}

func TestRegister_Success(t *testing.T) {
	f := &fakeAuth{}
	a, out := newAuthApp(f)
	stubInputs(t, "alice@example.org", []byte("secret"))

	if err := a.Register(context.Background()); err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if f.regUser != "alice@example.org" {
		t.Fatalf("Register user mismatch: %q", f.regUser)
	}
	if string(f.regPass) != "secret" {
		t.Fatalf("Register pass mismatch: %q", string(f.regPass))
	}
	if out.String() != "Success!\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRegister_ErrorPropagates(t *testing.T) {
	f := &fakeAuth{regErr: errors.New("taken")}
	a, _ := newAuthApp(f)
	stubInputs(t, "u", []byte("p"))

	if err := a.Register(context.Background()); err == nil {
		t.Fatalf("want error from Register")
	}
}

func TestLogin_Online(t *testing.T) {
	f := &fakeAuth{onlineMK: []byte("mk")}
	a, _ := newAuthApp(f)
	stubInputs(t, "bob", []byte("pw"))

	if err := a.Login(context.Background()); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if !a.isLoggedIn() || a.Mode != ModeOnline || a.userName != "bob" {
		t.Fatalf("state: loggedIn=%v mode=%q user=%q", a.isLoggedIn(), a.Mode, a.userName)
	}
	if f.offlineCalled {
		t.Fatalf("offline login must not be tried")
	}
	if a.getStatus() != "(bob online)" {
		t.Fatalf("status = %q", a.getStatus())
	}
}

func TestLogin_FallsBackToOffline(t *testing.T) {
	f := &fakeAuth{onlineErr: client.ErrUnavailable, offlineMK: []byte("mk")}
	a, _ := newAuthApp(f)
	stubInputs(t, "bob", []byte("pw"))

	_ = a.Login(context.Background())
	if !f.offlineCalled {
		t.Fatalf("offline login not attempted")
	}
	if !a.isLoggedIn() || a.Mode != ModeOffline {
		t.Fatalf("state: loggedIn=%v mode=%q", a.isLoggedIn(), a.Mode)
	}
}

func TestLogin_BothFail(t *testing.T) {
	f := &fakeAuth{onlineErr: client.ErrUnavailable, offlineErr: client.ErrLocalDataNotAvailable}
	a, _ := newAuthApp(f)
	stubInputs(t, "bob", []byte("pw"))

	_ = a.Login(context.Background())
	if a.isLoggedIn() || a.Mode != ModeDisabled {
		t.Fatalf("state: loggedIn=%v mode=%q", a.isLoggedIn(), a.Mode)
	}
}

func TestLogin_Rejected(t *testing.T) {
	f := &fakeAuth{onlineErr: client.ErrUnauthorized}
	a, out := newAuthApp(f)
	stubInputs(t, "bob", []byte("pw"))

	_ = a.Login(context.Background())
	if f.offlineCalled {
		t.Fatalf("offline login must only follow an unavailable server")
	}
	if a.isLoggedIn() {
		t.Fatalf("must not be logged in")
	}
	if !bytes.Contains(out.Bytes(), []byte("Login unsuccessful")) {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestLogout(t *testing.T) {
	f := &fakeAuth{}
	a, _ := newAuthApp(f)
	a.loggedIn, a.userName = true, "bob"

	if err := a.Logout(context.Background(), false); err != nil {
		t.Fatalf("Logout err: %v", err)
	}
	if f.logoutCalls != 1 || f.clearCalled {
		t.Fatalf("logout=%d clear=%v", f.logoutCalls, f.clearCalled)
	}
	if a.isLoggedIn() || a.userName != "" {
		t.Fatalf("session not cleared")
	}
}

func TestLogout_WipeErrorPropagates(t *testing.T) {
	f := &fakeAuth{clearErr: errors.New("clean-fail")}
	a, _ := newAuthApp(f)
	if err := a.Logout(context.Background(), true); err == nil {
		t.Fatalf("want error from ClearOfflineData")
	}
	if !f.clearCalled {
		t.Fatalf("ClearOfflineData not called")
	}
}
