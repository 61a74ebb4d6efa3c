package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/speakwise-web/backend"
	"github.com/jrsteele09/speakwise-web/credentials"
	"github.com/jrsteele09/speakwise-web/internal/config"
	"github.com/jrsteele09/speakwise-web/internal/metrics"
	"github.com/jrsteele09/speakwise-web/oauthcallback"
	"github.com/jrsteele09/speakwise-web/refresh"
	"github.com/jrsteele09/speakwise-web/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// app is the composition root shared by the server and the CLI commands
type app struct {
	config    config.Config
	store     *credentials.Store
	client    *backend.Client
	scheduler *refresh.Scheduler
	manager   *session.Manager
	metrics   *metrics.Metrics
}

// newApp wires the session stack. A nil registerer disables metrics.
func newApp(cfg config.Config, registerer prometheus.Registerer) *app {
	var m *metrics.Metrics
	if registerer != nil {
		m = metrics.New(registerer)
	}

	var fileOpts []credentials.FileOption
	if key := cfg.GetCredentialsKey(); key != "" {
		fileOpts = append(fileOpts, credentials.WithPassphrase(key))
	}
	store := credentials.NewStore(credentials.NewFileStorage(cfg.GetCredentialsFile(), fileOpts...))

	client := backend.New(cfg.GetAPIBaseURL(), backend.WithTimeout(cfg.GetRequestTimeout()))

	fixed := refresh.FixedLifetimePolicy{
		Lifetime: cfg.GetAccessTokenLifetime(),
		Buffer:   cfg.GetRefreshSafetyBuffer(),
	}
	var policy refresh.Policy = fixed
	if cfg.GetRefreshUseExpiryClaim() {
		policy = refresh.ExpiryClaimPolicy{Buffer: cfg.GetRefreshSafetyBuffer(), Fallback: fixed}
	}

	scheduler := refresh.New(store, client,
		refresh.WithPolicy(policy),
		refresh.WithTimeout(cfg.GetRequestTimeout()),
		refresh.WithMetrics(m),
	)
	manager := session.NewManager(store, client, scheduler, session.WithMetrics(m))

	return &app{
		config:    cfg,
		store:     store,
		client:    client,
		scheduler: scheduler,
		manager:   manager,
		metrics:   m,
	}
}

// callbackHandler builds the OAuth callback handler, verifying id_tokens when an issuer is configured.
func (a *app) callbackHandler(ctx context.Context) (*oauthcallback.Handler, error) {
	opts := []oauthcallback.Option{
		oauthcallback.WithDelay(a.config.GetOAuthRedirectDelay()),
		oauthcallback.WithMetrics(a.metrics),
	}
	if issuer := a.config.GetOIDCIssuer(); issuer != "" {
		verifier, err := oauthcallback.NewOIDCVerifier(ctx, issuer, a.config.GetOIDCClientID())
		if err != nil {
			return nil, fmt.Errorf("[app callbackHandler] %w", err)
		}
		opts = append(opts, oauthcallback.WithVerifier(verifier))
		log.Info().Str("issuer", issuer).Msg("Verifying OAuth id_tokens")
	}
	return oauthcallback.NewHandler(a.manager, opts...), nil
}
