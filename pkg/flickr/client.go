package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"flickrharvest/pkg/config"
	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/ratelimit"
	"flickrharvest/pkg/region"
)

// ResponseCache stores successful raw response bodies by canonical query
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, body []byte)
}

// CallObserver is told about every API call the client makes. status is
// "ok", "cached", or an error type.
type CallObserver func(method, status string, took time.Duration)

// Options configures a Client
type Options struct {
	BaseURL      string
	AssetBaseURL string
	PageSize     int
	Accuracy     int
	Timeout      time.Duration
	HTTPClient   *http.Client
	Limiter      ratelimit.Limiter
	Cache        ResponseCache
	OnCall       CallObserver
	Logger       logger.Logger
}

// OptionsFromConfig maps the flickr config section onto Options
func OptionsFromConfig(cfg *config.FlickrConfig) Options {
	return Options{
		BaseURL:      cfg.BaseURL,
		AssetBaseURL: cfg.AssetBaseURL,
		PageSize:     cfg.PageSize,
		Accuracy:     cfg.Accuracy,
		Timeout:      cfg.Timeout,
	}
}

// Client talks to the REST API with one static API key
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	assetBaseURL string
	pageSize     int
	accuracy     int
	limiter      ratelimit.Limiter
	cache        ResponseCache
	onCall       CallObserver
	logger       logger.Logger
}

// NewClient creates a client for apiKey
func NewClient(apiKey string, opts Options) *Client {
	c := &Client{
		httpClient:   opts.HTTPClient,
		apiKey:       apiKey,
		baseURL:      opts.BaseURL,
		assetBaseURL: opts.AssetBaseURL,
		pageSize:     opts.PageSize,
		accuracy:     opts.Accuracy,
		limiter:      opts.Limiter,
		cache:        opts.Cache,
		onCall:       opts.OnCall,
		logger:       opts.Logger,
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.assetBaseURL == "" {
		c.assetBaseURL = DefaultAssetBaseURL
	}
	if c.pageSize <= 0 || c.pageSize > MaxPageSize {
		c.pageSize = 250
	}
	if c.accuracy <= 0 {
		c.accuracy = 16
	}
	if c.limiter == nil {
		c.limiter = ratelimit.Unlimited{}
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	return c
}

// PageSize is the per_page value sent with every search
func (c *Client) PageSize() int { return c.pageSize }

// AssetURL builds the static URL for p against the configured asset host
func (c *Client) AssetURL(p Photo, suffix string) string {
	return assetURL(c.assetBaseURL, p, suffix)
}

// FetchPage issues one search for r and returns the requested page
func (c *Client) FetchPage(ctx context.Context, r region.RegionClock, page int) (*Page, error) {
	start := time.Now()
	var resp SearchResponse
	if err := c.call(ctx, searchParams(r, page, c.pageSize, c.accuracy), true, &resp); err != nil {
		return nil, err
	}

	logger.LogQuery(c.logger, r.BBox(), int(resp.Photos.Page), int(resp.Photos.Pages), int(resp.Photos.Total),
		float64(time.Since(start).Milliseconds()))

	return &Page{
		Number: int(resp.Photos.Page),
		Pages:  int(resp.Photos.Pages),
		Total:  int(resp.Photos.Total),
		Photos: resp.Photos.Photo,
	}, nil
}

// CheckCredential probes the API key with flickr.test.echo. Any API-level
// failure is reported as an invalid credential.
func (c *Client) CheckCredential(ctx context.Context) error {
	params := url.Values{}
	params.Set("method", MethodEcho)

	var resp envelope
	err := c.call(ctx, params, false, &resp)
	if err == nil {
		return nil
	}
	if errs.Is(err, errs.ErrorTypeAPIQueryFailed) {
		return errs.Wrap(errs.ErrorTypeCredentialInvalid, err, "invalid API key")
	}
	return err
}

// LookupOwner fetches the public profile of ownerID
func (c *Client) LookupOwner(ctx context.Context, ownerID string) (OwnerProfile, error) {
	params := url.Values{}
	params.Set("method", MethodGetPerson)
	params.Set("user_id", ownerID)

	var resp personResponse
	if err := c.call(ctx, params, true, &resp); err != nil {
		return OwnerProfile{}, err
	}

	profile := OwnerProfile{
		ID:       ownerID,
		Username: resp.Person.Username.Content,
	}
	if resp.Person.Location != nil {
		profile.Hometown = resp.Person.Location.Content
	}
	return profile, nil
}

// call performs one API request. params must not carry the credential; the
// encoded params double as the cache key.
func (c *Client) call(ctx context.Context, params url.Values, cacheable bool, target interface{}) error {
	method := params.Get("method")
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")
	key := c.baseURL + "?" + params.Encode()

	if cacheable && c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			if err := json.Unmarshal(body, target); err == nil {
				c.observe(method, "cached", 0)
				return nil
			}
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.ErrorTypeCancelled, err, "waiting for rate limiter")
	}

	start := time.Now()
	body, err := c.get(ctx, params)
	if err == nil {
		err = c.decode(body, target)
	}
	took := time.Since(start)

	if err != nil {
		c.observe(method, string(errs.TypeOf(err)), took)
		c.logger.WarnWithFields("API call failed", map[string]interface{}{
			"method":   method,
			"error":    err.Error(),
			"duration": took,
		})
		return err
	}
	c.observe(method, "ok", took)

	if cacheable && c.cache != nil {
		c.cache.Put(ctx, key, body)
	}
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	withKey := url.Values{}
	for k, v := range params {
		withKey[k] = v
	}
	withKey.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+withKey.Encode(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flickrharvest/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrorTypeCancelled, ctx.Err(), "request cancelled")
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "flickr unreachable")
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}
	return body, nil
}

// decode unmarshals body into target after checking the stat field
func (c *Client) decode(body []byte, target interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "malformed response")
	}

	switch env.Stat {
	case "ok":
	case "fail":
		if env.Code == codeInvalidKey {
			return errs.New(errs.ErrorTypeCredentialInvalid, env.Code, env.Message)
		}
		return errs.New(errs.ErrorTypeAPIQueryFailed, env.Code, env.Message)
	default:
		return errs.New(errs.ErrorTypeParsing, 0, fmt.Sprintf("unexpected stat %q", env.Stat))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "malformed response")
	}
	return nil
}

// checkResponseStatus maps HTTP failures onto error types
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.ErrorTypeCredentialInvalid, resp.StatusCode, "credential rejected")
	case resp.StatusCode == http.StatusTooManyRequests:
		logger.LogRateLimit(c.logger, resp.Request.URL.Query().Get("method"), retryAfter(resp))
		return errs.New(errs.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		return errs.New(errs.ErrorTypeServerError, resp.StatusCode, "server error")
	default:
		return errs.New(errs.ErrorTypeUnknown, resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
}

func (c *Client) observe(method, status string, took time.Duration) {
	if c.onCall != nil {
		c.onCall(method, status, took)
	}
}

func retryAfter(resp *http.Response) int {
	var secs int
	fmt.Sscanf(resp.Header.Get("Retry-After"), "%d", &secs)
	return secs
}
