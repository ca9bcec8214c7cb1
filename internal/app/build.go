package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/matedort/careline/internal/agents"
	"github.com/matedort/careline/internal/bridge"
	"github.com/matedort/careline/internal/config"
	"github.com/matedort/careline/internal/dispatch"
	"github.com/matedort/careline/internal/httpapi"
	"github.com/matedort/careline/internal/live"
	"github.com/matedort/careline/internal/observability"
	"github.com/matedort/careline/internal/scheduler"
	"github.com/matedort/careline/internal/store"
	"github.com/matedort/careline/internal/telephony"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Bridge    *bridge.Bridge
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.New(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	var phone *telephony.Client
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		phone, err = telephony.NewClient(telephony.Config{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			FromNumber:  cfg.TwilioFromNumber,
			ToNumber:    cfg.TargetNumber,
			WebhookBase: cfg.WebhookBaseURL,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("telephony init failed: %w", err)
		}
	} else {
		log.Printf("app: twilio credentials not set, outbound calling disabled")
	}

	table := dispatch.NewTable(agents.Env{
		Store:    st,
		Notifier: &callNotifier{phone: phone},
	})

	dial := func(ctx context.Context) (bridge.LiveSession, error) {
		sess, err := live.Dial(ctx, live.Config{
			APIKey:            cfg.GeminiAPIKey,
			Endpoint:          cfg.GeminiEndpoint,
			Model:             cfg.GeminiModel,
			SystemInstruction: cfg.SystemInstruction,
			VoiceName:         cfg.GeminiVoice,
			Declarations:      table.Declarations(),
		})
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	sched := scheduler.New(st, &reminderPlacer{phone: phone}, metrics,
		scheduler.WithInterval(cfg.ReminderInterval))

	br := bridge.New(dial, table, sched, st, metrics,
		bridge.WithBufferFrames(cfg.BridgeBufferFrames))

	api := httpapi.New(cfg, st, br, sched, metrics)

	cleanup := func() error {
		var errs []string
		if err := st.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Bridge:    br,
		Scheduler: sched,
		Metrics:   metrics,
		Cleanup:   cleanup,
	}, nil
}

// reminderPlacer dials the configured target number when a reminder
// comes due.
type reminderPlacer struct {
	phone *telephony.Client
}

func (p *reminderPlacer) PlaceReminderCall(ctx context.Context, r store.Reminder) (string, error) {
	if p.phone == nil {
		return "", fmt.Errorf("%w: telephony not configured", telephony.ErrPlacement)
	}
	callID, err := p.phone.PlaceCall(ctx, "")
	if err != nil {
		return "", err
	}
	log.Printf("app: placed reminder call %s for %q", callID, r.Title)
	return callID, nil
}

// callNotifier backs the send_notification tool. The "call" channel
// places an outbound phone call; anything else is recorded in the log
// only, there is no SMS path.
type callNotifier struct {
	phone *telephony.Client
}

func (n *callNotifier) Notify(ctx context.Context, message, channel string) error {
	if channel == "call" {
		if n.phone == nil {
			return fmt.Errorf("%w: telephony not configured", telephony.ErrPlacement)
		}
		callID, err := n.phone.PlaceCall(ctx, "")
		if err != nil {
			return err
		}
		log.Printf("app: notification call %s placed: %s", callID, message)
		return nil
	}
	log.Printf("app: notification (%s): %s", channel, message)
	return nil
}
