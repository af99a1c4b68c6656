package main

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/ema-workflow/core/dialog"
	"github.com/koscakluka/ema-workflow/core/present"
	"github.com/koscakluka/ema-workflow/core/sessions"
	"github.com/koscakluka/ema-workflow/core/workflow"
	"github.com/koscakluka/ema-workflow/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-workflow/cmd/ema-workflow"

var logger = otelslog.NewLogger(scopeName)

// app holds what every command shares: the workflow client and the session
// store.
type app struct {
	cfg    *config.Config
	client *workflow.Client
	store  dialog.SessionStore
	sweep  func(context.Context, time.Time) error
	close  func() error
}

func newApp(cfg *config.Config) (*app, error) {
	framing, err := config.ParseFraming(cfg.Backend.Framing)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		client: workflow.NewClient(
			workflow.WithBaseURL(cfg.Backend.BaseURL),
			workflow.WithIdleTimeout(cfg.Backend.IdleTimeout.Std()),
			workflow.WithFraming(framing),
		),
		close: func() error { return nil },
	}

	ttl := sessions.WithIdleTTL(cfg.Sessions.IdleTTL.Std())
	switch cfg.Sessions.Store {
	case "sqlite":
		store, err := sessions.OpenSQLite(cfg.Sessions.Path, ttl)
		if err != nil {
			return nil, fmt.Errorf("error opening session store: %w", err)
		}
		a.store = store
		a.close = store.Close
		a.sweep = func(ctx context.Context, now time.Time) error {
			_, err := store.Sweep(ctx, now)
			return err
		}
	default:
		store := sessions.NewMemory(ttl)
		a.store = store
		a.sweep = func(_ context.Context, now time.Time) error {
			store.Sweep(now)
			return nil
		}
	}
	return a, nil
}

func (a *app) controller(sink dialog.Sink) *dialog.Controller {
	d := a.cfg.Dialog
	presenter := present.New(d.FallbackContact)
	presenter.CompletionEchoLimit = d.CompletionEchoLimit

	return dialog.NewController(a.client, sink, a.store,
		dialog.WithPresenter(presenter),
		dialog.WithShortReplyLimit(d.ShortReplyLimit),
		dialog.WithEmailInstruction(d.EmailInstruction),
		dialog.WithEmailOffers(d.EmailOffers...),
		dialog.WithStepNames(dialog.StepNames{
			Answer: d.Steps.Answer,
			Draft:  d.Steps.Draft,
			Send:   d.Steps.Send,
		}),
	)
}

// runSweeper drops idle sessions until ctx is done.
func (a *app) runSweeper(ctx context.Context) {
	interval := a.cfg.Sessions.SweepInterval.Std()
	if interval <= 0 || a.cfg.Sessions.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := a.sweep(ctx, now); err != nil {
				logger.WarnContext(ctx, "failed to sweep idle sessions", "error", err)
			}
		}
	}
}
