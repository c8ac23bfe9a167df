package authflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// callbackDrain bounds how long the local redirect server gets to finish
// an in-flight response during shutdown.
const callbackDrain = 5 * time.Second

// loginBrowser runs the authorization-code + PKCE flow against a localhost
// redirect: bind a random port, send the user's browser to the consent
// page, trade the returned code for a token.
func (a *Acquirer) loginBrowser(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	logger := a.logger()
	logger.Info("starting browser sign-in (authorization code + PKCE)")

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	cb, err := listenCallback(ctx, state, logger)
	if err != nil {
		return nil, err
	}
	defer cb.close(logger)

	// The registered redirect URI is plain "http://localhost". The
	// authorization server accepts any port on it but the path must
	// stay "/".
	oc.RedirectURL = "http://localhost:" + strconv.Itoa(cb.port)

	verifier := oauth2.GenerateVerifier()
	authURL := oc.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	a.launchBrowser(authURL, logger)

	var code string

	select {
	case res := <-cb.results:
		if res.err != nil {
			return nil, res.err
		}

		code = res.code
	case <-ctx.Done():
		return nil, fmt.Errorf("browser sign-in canceled: %w", ctx.Err())
	}

	logger.Info("received authorization code, exchanging for token")

	tok, err := oc.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	logger.Info("browser sign-in successful", slog.Time("expiry", tok.Expiry))

	return tok, nil
}

// callbackServer is the throwaway localhost listener the authorization
// redirect lands on.
type callbackServer struct {
	srv     *http.Server
	port    int
	results chan authCode
}

// authCode is what one redirect request resolved to.
type authCode struct {
	code string
	err  error
}

// listenCallback binds 127.0.0.1:0 and serves the redirect handler.
func listenCallback(ctx context.Context, state string, logger *slog.Logger) (*callbackServer, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("binding localhost listener: %w", err)
	}

	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		ln.Close()
		return nil, errors.New("listener address is not TCP")
	}

	cb := &callbackServer{
		port:    addr.Port,
		results: make(chan authCode, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		cb.redeem(w, r, state)
	})

	cb.srv = &http.Server{Handler: mux, ReadHeaderTimeout: callbackDrain}

	go func() {
		if serveErr := cb.srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.results <- authCode{err: fmt.Errorf("callback server: %w", serveErr)}
		}
	}()

	logger.Debug("callback server listening", slog.Int("port", cb.port))

	return cb, nil
}

// redeem turns one redirect request into an authCode on the results
// channel, answering the browser either way.
func (cb *callbackServer) redeem(w http.ResponseWriter, r *http.Request, state string) {
	q := r.URL.Query()

	var res authCode

	switch {
	case q.Get("state") != state:
		res.err = errors.New("state mismatch on redirect (possible CSRF)")
	case q.Get("error") != "":
		res.err = fmt.Errorf("authorization failed: %s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		res.err = errors.New("redirect carried no authorization code")
	default:
		res.code = q.Get("code")
	}

	if res.err != nil {
		http.Error(w, res.err.Error(), http.StatusBadRequest)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Signed in</h1>"+
			"<p>You can close this tab and return to the terminal.</p></body></html>")
	}

	select {
	case cb.results <- res:
	default: // a reloaded redirect page changes nothing
	}
}

func (cb *callbackServer) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackDrain)
	defer cancel()

	if err := cb.srv.Shutdown(ctx); err != nil {
		logger.Warn("callback server shutdown", slog.String("error", err.Error()))
	}
}

// launchBrowser opens authURL, printing it for manual copy when no
// browser can be started.
func (a *Acquirer) launchBrowser(authURL string, logger *slog.Logger) {
	open := a.OpenURL
	if open == nil {
		open = systemOpen
	}

	if err := open(authURL); err != nil {
		logger.Warn("could not open a browser", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)

		return
	}

	logger.Info("opened browser for authorization")
}

// systemOpen shells out to the platform URL launcher.
func systemOpen(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u).Start()
	}

	return exec.Command("xdg-open", u).Start()
}

// randomState mints the anti-CSRF state parameter.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
