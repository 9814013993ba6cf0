package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// DateLayout is the DD/MM/YYYY format the search form expects.
const DateLayout = "02/01/2006"

// Target identifies the page and filters a cycle searches.
type Target struct {
	BaseURL   string
	State     string
	ClubID    string
	ClubLabel string
	Location  *time.Location
}

// Driver brings a session to the "search submitted, captcha shown" state.
type Driver struct {
	target Target
	logger *zap.Logger
}

// NewDriver constructs a Driver.
func NewDriver(target Target, logger *zap.Logger) *Driver {
	if target.Location == nil {
		target.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{target: target, logger: logger}
}

// Form builds the search form for the operating-timezone date of now.
func (d *Driver) Form(now time.Time) bid.SearchForm {
	return bid.SearchForm{
		Date:      now.In(d.target.Location).Format(DateLayout),
		State:     d.target.State,
		ClubID:    d.target.ClubID,
		ClubLabel: d.target.ClubLabel,
	}
}

// Prepare navigates, fills and submits the search, then waits for the captcha modal.
func (d *Driver) Prepare(ctx context.Context, page bid.SearchPage, now time.Time) error {
	if err := page.Navigate(ctx, d.target.BaseURL); err != nil {
		return fmt.Errorf("open search page: %w", err)
	}

	form := d.Form(now)
	if err := page.FillSearch(ctx, form); err != nil {
		return fmt.Errorf("fill search: %w", err)
	}
	d.logger.Info("search form filled",
		zap.String("date", form.Date),
		zap.String("state", form.State),
		zap.String("club", form.ClubLabel),
	)

	if err := page.SubmitSearch(ctx); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	if err := page.WaitCaptcha(ctx); err != nil {
		return fmt.Errorf("wait captcha modal: %w", err)
	}
	return nil
}
