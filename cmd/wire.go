package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/bid"
	"github.com/JakeFAU/bidwatcher/internal/browser"
	"github.com/JakeFAU/bidwatcher/internal/captcha"
	"github.com/JakeFAU/bidwatcher/internal/captcha/capmonster"
	"github.com/JakeFAU/bidwatcher/internal/clock/system"
	"github.com/JakeFAU/bidwatcher/internal/config"
	"github.com/JakeFAU/bidwatcher/internal/dedup"
	"github.com/JakeFAU/bidwatcher/internal/id/uuid"
	"github.com/JakeFAU/bidwatcher/internal/metrics"
	"github.com/JakeFAU/bidwatcher/internal/monitor"
	"github.com/JakeFAU/bidwatcher/internal/publisher/memory"
	"github.com/JakeFAU/bidwatcher/internal/publisher/pubsub"
	"github.com/JakeFAU/bidwatcher/internal/publisher/twitter"
	"github.com/JakeFAU/bidwatcher/internal/timegate"
)

// service holds the wired watcher and the resources it owns.
type service struct {
	monitor *monitor.Monitor
	browser *browser.Browser
	clock   *system.Clock
	closers []io.Closer
	logger  *zap.Logger
}

// Close releases the publisher and the browser allocator.
func (s *service) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close failed", zap.Error(err))
		}
	}
	s.browser.Close()
}

// buildService wires every collaborator of the monitor from cfg. A non-nil
// gate replaces the configured business-hours gate.
func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger, gate monitor.Gate) (*service, error) {
	metrics.Init()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	br, err := browser.NewChromedp(browser.Config{
		Headless:    cfg.Browser.Headless,
		NoSandbox:   cfg.Browser.NoSandbox,
		UserAgent:   cfg.Browser.UserAgent,
		SettleDelay: cfg.Browser.SettleDelay,
		StepTimeout: cfg.Browser.StepTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init browser: %w", err)
	}

	ocr, err := capmonster.New(capmonster.Config{
		APIKey:       cfg.Captcha.APIKey,
		BaseURL:      cfg.Captcha.BaseURL,
		PollInterval: cfg.Captcha.PollInterval,
		Timeout:      cfg.Captcha.Timeout,
	}, logger.Named("capmonster"))
	if err != nil {
		br.Close()
		return nil, fmt.Errorf("init captcha client: %w", err)
	}

	pub, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		br.Close()
		return nil, err
	}
	svc := &service{browser: br, logger: logger}
	if c, ok := pub.(io.Closer); ok {
		svc.closers = append(svc.closers, c)
	}

	if gate == nil {
		gate = timegate.New(loc, cfg.Schedule.OpenHour, cfg.Schedule.CloseHour)
	}

	clock := system.New(loc)
	mon, err := monitor.New(monitor.Deps{
		Clock:   clock,
		Gate:    gate,
		Browser: br,
		Driver: monitor.NewDriver(monitor.Target{
			BaseURL:   cfg.Site.BaseURL,
			State:     cfg.Site.State,
			ClubID:    cfg.Site.ClubID,
			ClubLabel: cfg.Site.ClubLabel,
			Location:  loc,
		}, logger.Named("driver")),
		Solver:    captcha.New(ocr, cfg.Captcha.MaxAttempts, logger.Named("captcha")),
		Cache:     dedup.New(),
		Publisher: pub,
		IDs:       uuid.New(),
	}, monitor.Options{
		Strategy:     cfg.Strategy(),
		CycleTimeout: cfg.Cycle.Timeout,
	}, logger.Named("monitor"))
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("init monitor: %w", err)
	}

	svc.monitor, svc.clock = mon, clock
	return svc, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (bid.Publisher, error) {
	if cfg.Publisher.DryRun {
		logger.Warn("dry run enabled; records are logged instead of posted")
		return memory.New(logger.Named("publisher")), nil
	}
	if cfg.Publisher.Backend == config.BackendPubSub {
		pub, err := pubsub.Open(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic, logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		return pub, nil
	}
	pub, err := twitter.New(twitter.Config{
		APIKey:       cfg.Twitter.APIKey,
		APISecret:    cfg.Twitter.APISecret,
		AccessToken:  cfg.Twitter.AccessToken,
		AccessSecret: cfg.Twitter.AccessSecret,
		UploadURL:    cfg.Twitter.UploadURL,
		TweetURL:     cfg.Twitter.TweetURL,
		Timeout:      cfg.Twitter.Timeout,
	}, logger.Named("twitter"))
	if err != nil {
		return nil, fmt.Errorf("init twitter publisher: %w", err)
	}
	return pub, nil
}
