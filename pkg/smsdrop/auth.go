package smsdrop

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"

	"github.com/edevtech/smsdrop-go/internal/pkg/logger"
	"github.com/edevtech/smsdrop-go/pkg/tokenstore"
)

// Authenticator obtains bearer tokens and keeps them in a tokenstore.Store.
//
// Expiry is handled reactively: a token stays in use until the API rejects
// it, at which point the client calls Invalidate and logs in again.
type Authenticator struct {
	email    string
	password string
	oauth    *oauth2.Config
	client   *http.Client
	store    tokenstore.Store
	log      *logger.Logger

	mu       sync.Mutex
	current  string
	rejected string
}

func newAuthenticator(email, password, tokenURL string, doer HTTPDoer, store tokenstore.Store, log *logger.Logger) *Authenticator {
	return &Authenticator{
		email:    email,
		password: password,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: &http.Client{Transport: doerTransport{doer: doer}},
		store:  store,
		log:    log,
	}
}

// EnsureToken returns the cached token, or logs in and caches a new one.
// A cached token that was already rejected by the API is never returned.
func (a *Authenticator) EnsureToken(ctx context.Context) (string, error) {
	token, ok, err := a.store.Get(ctx)
	if err != nil {
		a.log.Warn("token store read failed, logging in", "error", err)
	}
	if err == nil && ok && !a.isRejected(token) {
		a.remember(token)
		return token, nil
	}

	token, err = a.login(ctx)
	if err != nil {
		return "", err
	}
	if err := a.store.Set(ctx, token); err != nil {
		a.log.Warn("token store write failed", "error", err)
	}
	a.mu.Lock()
	a.current = token
	if token == a.rejected {
		a.rejected = ""
	}
	a.mu.Unlock()
	return token, nil
}

// Invalidate clears the store and marks the token last handed out as
// rejected, so the next EnsureToken performs a fresh login.
func (a *Authenticator) Invalidate(ctx context.Context) error {
	a.mu.Lock()
	if a.current != "" {
		a.rejected = a.current
	}
	a.current = ""
	a.mu.Unlock()

	if err := a.store.Clear(ctx); err != nil {
		a.log.Warn("token store clear failed", "error", err)
		return err
	}
	return nil
}

func (a *Authenticator) remember(token string) {
	a.mu.Lock()
	a.current = token
	a.mu.Unlock()
}

func (a *Authenticator) isRejected(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected != "" && token == a.rejected
}

// login performs the password grant against the login endpoint.
func (a *Authenticator) login(ctx context.Context) (string, error) {
	a.log.Debug("logging in", "email", a.email)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.oauth.PasswordCredentialsToken(ctx, a.email, a.password)
	if err != nil {
		return "", classifyLoginError(err)
	}
	if tok.AccessToken == "" {
		return "", &RemoteError{StatusCode: http.StatusOK, Message: "login response missing access_token"}
	}

	a.log.Info("authenticated", "email", a.email)
	return tok.AccessToken, nil
}

func classifyLoginError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch code := re.Response.StatusCode; code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
			return &AuthError{StatusCode: code, Payload: rawPayload(re.Body)}
		default:
			return newRemoteError(code, re.Body)
		}
	}
	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: "login", Err: err}
	}
	return &RemoteError{StatusCode: http.StatusOK, Message: err.Error()}
}

// doerTransport lets oauth2, which needs an *http.Client, send through the
// client's HTTPDoer so login traffic is logged like every other call.
type doerTransport struct {
	doer HTTPDoer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.doer.Do(req)
}
