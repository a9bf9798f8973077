package smsdrop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edevtech/smsdrop-go/internal/pkg/httplog"
	"github.com/edevtech/smsdrop-go/internal/pkg/logger"
	"github.com/edevtech/smsdrop-go/pkg/tokenstore"
)

// DefaultBaseURL is the root of the smsdrop REST API.
const DefaultBaseURL = "https://api.smsdrop.net/api/v1/"

// API paths, relative to the base URL.
const (
	loginPath        = "auth/jwt/login"
	userPath         = "users/me"
	subscriptionPath = "subscription"
	campaignPath     = "campaigns/"
	campaignRetry    = "campaigns/retry"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 15 * time.Second

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer = httplog.HTTPDoer

// Client is the entry point to the smsdrop API.
type Client struct {
	baseURL    *url.URL
	httpClient HTTPDoer
	auth       *Authenticator
	log        *logger.Logger
}

type options struct {
	baseURL  string
	store    tokenstore.Store
	doer     HTTPDoer
	timeout  time.Duration
	logLevel string
	logOut   io.Writer
}

// Option customizes a Client.
type Option func(*options)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTokenStore selects where the bearer token is cached. Defaults to an
// in-memory store.
func WithTokenStore(s tokenstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(o *options) { o.doer = d }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogLevel sets logging verbosity: debug, info, warn (default), error or off.
func WithLogLevel(level string) Option {
	return func(o *options) { o.logLevel = level }
}

// WithLogOutput redirects log lines, which go to stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOut = w }
}

// New creates a Client for the given account. No request is made until the
// first operation.
func New(email, password string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(email) == "" {
		return nil, invalid("email", "must not be empty")
	}
	if password == "" {
		return nil, invalid("password", "must not be empty")
	}

	o := options{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	base, err := url.Parse(o.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, invalid("base_url", fmt.Sprintf("%q is not an absolute URL", o.baseURL))
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	log := logger.New(logger.ParseLevel(o.logLevel), o.logOut).With("component", "smsdrop")

	doer := o.doer
	if doer == nil {
		doer = &http.Client{Timeout: o.timeout}
	}
	httpClient := httplog.NewLoggingClient(doer, log)

	store := o.store
	if store == nil {
		store = tokenstore.NewMemory()
	}

	c := &Client{
		baseURL:    base,
		httpClient: httpClient,
		log:        log,
	}
	c.auth = newAuthenticator(email, password, c.resolve(loginPath, nil), httpClient, store, log)
	return c, nil
}

// Authenticator exposes the client's token lifecycle.
func (c *Client) Authenticator() *Authenticator {
	return c.auth
}

func (c *Client) resolve(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.baseURL.ResolveReference(ref).String()
}

// response is a fully read API answer.
type response struct {
	status int
	body   []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// do sends an authenticated request. A 401 invalidates the token and the
// request is retried once with a fresh login; a second 401 is an AuthError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}) (response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("smsdrop: encoding request: %w", err)
		}
	}

	var last response
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.auth.EnsureToken(ctx)
		if err != nil {
			return response{}, err
		}

		last, err = c.send(ctx, method, c.resolve(path, query), token, body)
		if err != nil {
			return response{}, err
		}
		if last.status != http.StatusUnauthorized {
			return last, nil
		}

		c.log.Info("access token rejected", "method", method, "path", path, "attempt", attempt+1)
		_ = c.auth.Invalidate(ctx)
	}

	return response{}, &AuthError{
		StatusCode: http.StatusUnauthorized,
		Payload:    rawPayload(last.body),
		Err:        ErrAuthExpired,
	}
}

func (c *Client) send(ctx context.Context, method, target, token string, body []byte) (response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return response{}, fmt.Errorf("smsdrop: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, &TransportError{Op: "reading response", Err: err}
	}
	return response{status: resp.StatusCode, body: data}, nil
}

func decode(resp response, dst interface{}) error {
	if err := json.Unmarshal(resp.body, dst); err != nil {
		return &RemoteError{
			StatusCode: resp.status,
			Message:    "malformed response: " + err.Error(),
			Payload:    rawPayload(resp.body),
		}
	}
	return nil
}

// GetProfile returns the authenticated account.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, userPath, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, newRemoteError(resp.status, resp.body)
	}

	var profile Profile
	if err := decode(resp, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetSubscription returns the account's SMS credit balance.
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	resp, err := c.do(ctx, http.MethodGet, subscriptionPath, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, newRemoteError(resp.status, resp.body)
	}

	var sub Subscription
	if err := decode(resp, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetCampaigns returns one page of campaign snapshots in server order.
// The server caps limit; the result is never longer than limit.
func (c *Client) GetCampaigns(ctx context.Context, skip, limit int) ([]Campaign, error) {
	if skip < 0 {
		return nil, invalid("skip", "must not be negative")
	}
	if limit <= 0 {
		return nil, invalid("limit", "must be positive")
	}

	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	resp, err := c.do(ctx, http.MethodGet, campaignPath, query, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, newRemoteError(resp.status, resp.body)
	}

	var resources []campaignResource
	if err := decode(resp, &resources); err != nil {
		return nil, err
	}
	if len(resources) > limit {
		resources = resources[:limit]
	}

	campaigns := make([]Campaign, 0, len(resources))
	for i := range resources {
		campaigns = append(campaigns, resources[i].toCampaign())
	}
	return campaigns, nil
}

// GetCampaign fetches a single campaign snapshot.
func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	res, err := c.fetchCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	campaign := res.toCampaign()
	return &campaign, nil
}

func (c *Client) fetchCampaign(ctx context.Context, id string) (*campaignResource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "must not be empty")
	}

	resp, err := c.do(ctx, http.MethodGet, campaignPath+id, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, &NotFoundError{Resource: "campaign", ID: id, Payload: rawPayload(resp.body)}
	}
	if !resp.ok() {
		return nil, newRemoteError(resp.status, resp.body)
	}

	var res campaignResource
	if err := decode(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Launch validates and submits campaign, then writes the server-assigned ID,
// Status and counters into it.
//
// A campaign the account has no credits for is still stored: campaign.ID is
// set and the returned error matches ErrInsufficientCredits. Use Retry once
// credits are available.
func (c *Client) Launch(ctx context.Context, campaign *Campaign) error {
	if err := campaign.Validate(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, campaignPath, nil, encodeCampaign(campaign))
	if err != nil {
		return err
	}
	if !resp.ok() {
		return newRemoteError(resp.status, resp.body)
	}

	var res campaignResource
	if err := decode(resp, &res); err != nil {
		return err
	}
	res.applyLaunch(campaign)

	if resp.status == http.StatusCreated {
		c.log.Warn("campaign stored but not launched", "campaign_id", campaign.ID)
		return fmt.Errorf("campaign %s: %w", campaign.ID, ErrInsufficientCredits)
	}
	c.log.Info("campaign launched", "campaign_id", campaign.ID, "status", campaign.Status)
	return nil
}

// Refresh re-fetches campaign by ID and overwrites its fields in place.
func (c *Client) Refresh(ctx context.Context, campaign *Campaign) error {
	if !campaign.Launched() {
		return invalid("id", "campaign has not been launched")
	}

	res, err := c.fetchCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	res.applyRefresh(campaign)
	return nil
}

// Retry launches a campaign that was stored without enough credits.
func (c *Client) Retry(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "must not be empty")
	}

	resp, err := c.do(ctx, http.MethodPost, campaignRetry, nil, map[string]string{"id": id})
	if err != nil {
		return err
	}
	if resp.status == http.StatusNotFound {
		return &NotFoundError{Resource: "campaign", ID: id, Payload: rawPayload(resp.body)}
	}
	if !resp.ok() {
		return newRemoteError(resp.status, resp.body)
	}
	if resp.status == http.StatusCreated {
		return fmt.Errorf("campaign %s: %w", id, ErrInsufficientCredits)
	}
	return nil
}

// SendOption schedules a message sent with SendMessage.
type SendOption func(*Campaign)

// SendAt delays delivery until t, keeping its UTC offset.
func SendAt(t time.Time) SendOption {
	return func(c *Campaign) { c.DeferUntil = &t }
}

// SendAfter delays delivery by d, in whole seconds.
func SendAfter(d time.Duration) SendOption {
	return func(c *Campaign) { c.DeferBy = d }
}

// SendMessage sends message to a single phone number. It is a one-recipient
// campaign under the hood; the acknowledgment carries its ID and status.
// Without options the message is sent right away.
func (c *Client) SendMessage(ctx context.Context, message, sender, phone string, opts ...SendOption) (*Acknowledgment, error) {
	campaign := &Campaign{
		Message:       message,
		Sender:        sender,
		RecipientList: []string{phone},
	}
	for _, opt := range opts {
		opt(campaign)
	}
	err := c.Launch(ctx, campaign)
	if campaign.ID == "" {
		return nil, err
	}
	return &Acknowledgment{CampaignID: campaign.ID, Status: campaign.Status}, err
}
