package account

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-roborock/roborock/protocol/crypto"
)

// DefaultRegionURL is the default region-discovery endpoint queried
// before a base URL for the user's account region is known.
const DefaultRegionURL = "https://euiot.roborock.com"

// clientIDSuffix is appended to the username before hashing to derive
// the per-device header_clientid. Fixed by the account-service contract.
const clientIDSuffix = "should_be_unique"

// Config configures a Client.
type Config struct {
	// Username is the account email address.
	Username string
	// RegionURL is the initial region-discovery endpoint. Defaults to
	// DefaultRegionURL.
	RegionURL string
	// HTTPClient is the HTTP client used for all requests. Defaults to a
	// new http.Client with a 10s timeout.
	HTTPClient *http.Client
	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
	// Now returns the current time, used for Hawk signing. Defaults to
	// time.Now; overridable for tests.
	Now func() time.Time
}

// Client talks to the Roborock cloud account service: region discovery,
// email-code login, and home/device data retrieval.
type Client struct {
	cfg     Config
	log     *slog.Logger
	http    *http.Client
	now     func() time.Time
	baseURL string // resolved by DiscoverRegion
}

// New creates an account Client. The region base URL is resolved lazily
// on first use via DiscoverRegion.
func New(cfg Config) *Client {
	if cfg.RegionURL == "" {
		cfg.RegionURL = DefaultRegionURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		cfg:  cfg,
		log:  logger.WithGroup("account"),
		http: cfg.HTTPClient,
		now:  now,
	}
}

func (c *Client) headerClientID() string {
	return base64.StdEncoding.EncodeToString(crypto.MD5Bytes(c.cfg.Username + clientIDSuffix))
}

// envelope is the common shape of every account-service JSON response.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) doJSON(ctx context.Context, method, baseURL, path string, query url.Values, headers map[string]string, out any) error {
	u := baseURL + "/" + path
	if query != nil {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("account: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("account: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("account: read response %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("account: decode response %s: %w", path, err)
	}
	if env.Code != http.StatusOK {
		return &Error{Code: env.Code, Message: env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("account: decode data %s: %w", path, err)
		}
	}
	return nil
}

// DiscoverRegion resolves and caches the account-region base URL for the
// configured username.
func (c *Client) DiscoverRegion(ctx context.Context) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	var data struct {
		URL string `json:"url"`
	}
	query := url.Values{
		"email":           {c.cfg.Username},
		"needtwostepauth": {"false"},
	}
	if err := c.doJSON(ctx, http.MethodGet, c.cfg.RegionURL, "api/v1/getUrlByEmail", query, nil, &data); err != nil {
		return "", err
	}
	c.log.Debug("resolved account region", "base_url", data.URL)
	c.baseURL = data.URL
	return c.baseURL, nil
}

// RequestEmailCode asks the account service to send a login code to the
// configured username's email address.
func (c *Client) RequestEmailCode(ctx context.Context) error {
	baseURL, err := c.DiscoverRegion(ctx)
	if err != nil {
		return err
	}
	headers := map[string]string{"header_clientid": c.headerClientID()}
	query := url.Values{
		"username": {c.cfg.Username},
		"type":     {"auth"},
	}
	if err := c.doJSON(ctx, http.MethodPost, baseURL, "api/v1/sendEmailCode", query, headers, nil); err != nil {
		return err
	}
	c.log.Info("requested email login code")
	return nil
}

// LoginWithCode exchanges an emailed login code for UserData.
func (c *Client) LoginWithCode(ctx context.Context, code string) (*UserData, error) {
	baseURL, err := c.DiscoverRegion(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"header_clientid": c.headerClientID()}
	query := url.Values{
		"username":       {c.cfg.Username},
		"verifycode":     {code},
		"verifycodetype": {"AUTH_EMAIL_CODE"},
	}
	var user UserData
	if err := c.doJSON(ctx, http.MethodPost, baseURL, "api/v1/loginWithCode", query, headers, &user); err != nil {
		return nil, err
	}
	c.log.Info("logged in", "user_id", user.UserID)
	return &user, nil
}

// FetchHomeID retrieves the account's home id, required before fetching
// the Hawk-signed home-data payload.
func (c *Client) FetchHomeID(ctx context.Context, user *UserData) (int64, error) {
	baseURL, err := c.DiscoverRegion(ctx)
	if err != nil {
		return 0, err
	}
	headers := map[string]string{
		"header_clientid": c.headerClientID(),
		"Authorization":   user.Token,
	}
	var data struct {
		RRHomeID int64 `json:"rrHomeId"`
	}
	if err := c.doJSON(ctx, http.MethodGet, baseURL, "api/v1/getHomeDetail", nil, headers, &data); err != nil {
		return 0, err
	}
	return data.RRHomeID, nil
}

// hawkEnvelope is the shape of the Hawk-signed home-data endpoint, which
// uses "success"/"result" instead of the "code"/"data" shape used
// elsewhere in the account service.
type hawkEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// FetchHomeData retrieves the full home/device payload for homeID, using
// the Hawk-style HMAC-SHA256 signature described in the protocol spec.
func (c *Client) FetchHomeData(ctx context.Context, user *UserData, homeID int64) (*HomeData, error) {
	authHeader, err := hawkHeader(user.RRiot, homeID, c.now())
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/user/homes/%d", user.RRiot.R.A, homeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("account: build request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account: fetch home data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("account: read home data: %w", err)
	}

	var env hawkEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("account: decode home data: %w", err)
	}
	if !env.Success {
		return nil, &Error{Message: fmt.Sprintf("home data request unsuccessful: %s", body)}
	}

	var home HomeData
	if err := json.Unmarshal(env.Result, &home); err != nil {
		return nil, fmt.Errorf("account: decode home data result: %w", err)
	}
	home.HomeID = homeID
	c.log.Info("fetched home data", "home_id", homeID, "device_count", len(home.AllDevices()))
	return &home, nil
}

// Login runs the full happy-path sequence: discover region, fetch home
// id, fetch home data. It does not request or exchange a login code —
// callers must already hold UserData from LoginWithCode.
func (c *Client) Login(ctx context.Context, user *UserData) (*HomeData, error) {
	homeID, err := c.FetchHomeID(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("account: fetch home id: %w", err)
	}
	return c.FetchHomeData(ctx, user, homeID)
}
