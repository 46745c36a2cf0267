package usecase

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"wellness-sync/domain/dto"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/configuration"
	"wellness-sync/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const (
	ActionView     = "view"
	ActionCreate   = "create"
	ActionDelete   = "delete"
	ActionValidate = "validate"

	selfTestChallenge = "self-test-challenge"
)

type ISubscriptionManager interface {
	// CallbackURL is the webhook URL the provider should call for a service reached at host.
	CallbackURL(host string) string
	View(ctx context.Context, host string) (*dto.SubscriptionView, error)
	Create(ctx context.Context, host, verifyToken string) (*dto.SubscriptionResult, error)
	Delete(ctx context.Context) (*dto.SubscriptionResult, error)
	Validate(ctx context.Context, host, verifyToken string) (*dto.WebhookValidation, error)
}

type subscriptionManager struct {
	strava     repository.IStrava
	httpClient *http.Client
	app        configuration.App
	strCfg     configuration.Strava
}

func NewSubscriptionManager(strava repository.IStrava, httpClient *http.Client, cfg *configuration.Config) ISubscriptionManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &subscriptionManager{strava: strava, httpClient: httpClient, app: cfg.App, strCfg: cfg.Strava}
}

// CallbackURL always uses https; the provider rejects plain http callbacks.
func (m *subscriptionManager) CallbackURL(host string) string {
	if m.app.PublicURL != "" {
		return m.app.PublicURL + m.strCfg.WebhookPath
	}
	return "https://" + host + m.strCfg.WebhookPath
}

func (m *subscriptionManager) token(override string) string {
	if override != "" {
		return override
	}
	return m.strCfg.WebhookVerifyToken
}

func (m *subscriptionManager) View(ctx context.Context, host string) (*dto.SubscriptionView, error) {
	subs, err := m.strava.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionView{
		StravaConfig: dto.StravaConfigView{
			ClientIDSet:        m.strCfg.ClientID != "",
			VerifyTokenSet:     m.strCfg.WebhookVerifyToken != "",
			DerivedCallbackURL: m.CallbackURL(host),
		},
		CurrentSubscriptions: subs,
	}, nil
}

// Create refuses to register a second subscription, the provider allows only one.
func (m *subscriptionManager) Create(ctx context.Context, host, verifyToken string) (*dto.SubscriptionResult, error) {
	subs, err := m.strava.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	if len(subs) > 0 {
		current := subs[0]
		return &dto.SubscriptionResult{
			Success: false,
			Message: "Subscription already exists. Delete it first if you want to update it.",
			Current: &current,
		}, nil
	}

	callback := m.CallbackURL(host)
	logger.GetLogger().WithField("callback_url", callback).Info("Registering webhook subscription")
	sub, err := m.strava.CreateSubscription(ctx, callback, m.token(verifyToken))
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResult{Success: true, Message: "Subscription created", Subscription: sub}, nil
}

func (m *subscriptionManager) Delete(ctx context.Context) (*dto.SubscriptionResult, error) {
	subs, err := m.strava.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return &dto.SubscriptionResult{Success: false, Message: "No subscriptions to delete."}, nil
	}
	sub := subs[0]
	if err := m.strava.DeleteSubscription(ctx, sub.ID); err != nil {
		return nil, err
	}
	return &dto.SubscriptionResult{Success: true, Message: fmt.Sprintf("Deleted subscription %d", sub.ID), Subscription: &sub}, nil
}

type challengeQuery struct {
	Mode        string `url:"hub.mode"`
	VerifyToken string `url:"hub.verify_token"`
	Challenge   string `url:"hub.challenge"`
}

// Validate runs the subscription handshake against our own webhook and reports what came back.
func (m *subscriptionManager) Validate(ctx context.Context, host, verifyToken string) (*dto.WebhookValidation, error) {
	token := m.token(verifyToken)
	q, err := query.Values(challengeQuery{Mode: subscribeMode, VerifyToken: token, Challenge: selfTestChallenge})
	if err != nil {
		return nil, err
	}
	target := m.CallbackURL(host) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &dto.WebhookValidation{Success: false, Response: err.Error(), URLUsed: target, TokenUsed: token}, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	return &dto.WebhookValidation{
		Success:   resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:    resp.StatusCode,
		Response:  string(body),
		URLUsed:   target,
		TokenUsed: token,
	}, nil
}
