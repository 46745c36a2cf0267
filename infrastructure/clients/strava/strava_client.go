package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 4 << 20

// Limiter guards the provider's request budget. Allow reports whether one more call fits.
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// Config represents Strava API configuration
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Scope        string // comma separated, Strava does not accept space separated scopes
}

// Client talks to the Strava OAuth and REST endpoints.
type Client struct {
	oauth        *oauth2.Config
	clientID     string
	clientSecret string
	scope        string
	apiBaseURL   string
	httpClient   *http.Client
	limiter      Limiter
}

// NewStravaClient creates a new Strava API client. httpClient and limiter may be nil.
func NewStravaClient(cfg Config, httpClient *http.Client, limiter Limiter) repository.IStrava {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        cfg.Scope,
		apiBaseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient:   httpClient,
		limiter:      limiter,
	}
}

func (c *Client) AuthCodeURL(state, redirectURI string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("scope", c.scope),
		oauth2.SetAuthURLParam("approval_prompt", "force"),
	)
}

func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*model.TokenGrant, error) {
	const op = "strava.ExchangeCode"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	if err != nil {
		return nil, oauthError(op, err)
	}
	return grantFromToken(tok), nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	const op = "strava.RefreshToken"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	// An empty access token forces the token source to run the refresh grant.
	tok, err := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, oauthError(op, err)
	}
	return grantFromToken(tok), nil
}

func (c *Client) ListActivities(ctx context.Context, accessToken string, params repository.ListActivitiesParams) ([]model.StravaActivity, error) {
	const op = "strava.ListActivities"
	q, err := query.Values(params)
	if err != nil {
		return nil, apperror.Validation(op, err.Error())
	}
	var out []model.StravaActivity
	if err := c.do(ctx, op, http.MethodGet, "/athlete/activities", q, nil, accessToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetActivity(ctx context.Context, accessToken, activityID string) (*model.StravaActivity, error) {
	const op = "strava.GetActivity"
	q := url.Values{"include_all_efforts": {"true"}}
	var out model.StravaActivity
	if err := c.do(ctx, op, http.MethodGet, "/activities/"+url.PathEscape(activityID), q, nil, accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSegment(ctx context.Context, accessToken, segmentID string) (*model.StravaSegment, error) {
	const op = "strava.GetSegment"
	var out model.StravaSegment
	if err := c.do(ctx, op, http.MethodGet, "/segments/"+url.PathEscape(segmentID), nil, nil, accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type subscriptionForm struct {
	ClientID     string `url:"client_id"`
	ClientSecret string `url:"client_secret"`
	CallbackURL  string `url:"callback_url,omitempty"`
	VerifyToken  string `url:"verify_token,omitempty"`
}

func (c *Client) appCredentials(op string, form subscriptionForm) (url.Values, error) {
	form.ClientID = c.clientID
	form.ClientSecret = c.clientSecret
	v, err := query.Values(form)
	if err != nil {
		return nil, apperror.Validation(op, err.Error())
	}
	return v, nil
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	const op = "strava.ListSubscriptions"
	q, err := c.appCredentials(op, subscriptionForm{})
	if err != nil {
		return nil, err
	}
	var out []model.Subscription
	if err := c.do(ctx, op, http.MethodGet, "/push_subscriptions", q, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, callbackURL, verifyToken string) (*model.Subscription, error) {
	const op = "strava.CreateSubscription"
	form, err := c.appCredentials(op, subscriptionForm{CallbackURL: callbackURL, VerifyToken: verifyToken})
	if err != nil {
		return nil, err
	}
	var out model.Subscription
	if err := c.do(ctx, op, http.MethodPost, "/push_subscriptions", nil, form, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, id int64) error {
	const op = "strava.DeleteSubscription"
	q, err := c.appCredentials(op, subscriptionForm{})
	if err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodDelete, fmt.Sprintf("/push_subscriptions/%d", id), q, nil, "", nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, q, form url.Values, bearer string, out interface{}) error {
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	target := c.apiBaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return apperror.Provider(op, 0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.Provider(op, 0, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperror.Provider(op, resp.StatusCode, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.GetLogger().WithFields(map[string]interface{}{
			"op":     op,
			"status": resp.StatusCode,
		}).Warn("Strava API returned non-2xx")
		return apperror.Provider(op, resp.StatusCode, strings.TrimSpace(string(data)), nil)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperror.Provider(op, resp.StatusCode, "malformed response", err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	ok, err := c.limiter.Allow(ctx)
	if err != nil {
		// fail open: the limiter only mirrors the provider's own quota
		logger.GetLogger().WithField("error", err).Warn("Rate limiter unavailable")
		return nil
	}
	if !ok {
		return apperror.Provider(op, http.StatusTooManyRequests, "local rate limit exceeded", nil)
	}
	return nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func oauthError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return apperror.Provider(op, re.Response.StatusCode, strings.TrimSpace(string(re.Body)), nil)
	}
	return apperror.Provider(op, 0, "token request failed", err)
}

func grantFromToken(tok *oauth2.Token) *model.TokenGrant {
	g := &model.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
	if v, ok := tok.Extra("expires_at").(float64); ok && v > 0 {
		g.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}
	if raw, ok := tok.Extra("athlete").(map[string]interface{}); ok {
		if b, err := json.Marshal(raw); err == nil {
			var a model.StravaAthlete
			if json.Unmarshal(b, &a) == nil && a.ID != 0 {
				g.Athlete = &a
			}
		}
	}
	return g
}
