package bid

import (
	"context"
	"time"
)

// Browser opens fresh browser sessions against the registry site.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// SearchPage drives the search form up to the captcha modal.
type SearchPage interface {
	Navigate(ctx context.Context, url string) error
	FillSearch(ctx context.Context, form SearchForm) error
	SubmitSearch(ctx context.Context) error
	WaitCaptcha(ctx context.Context) error
}

// CaptchaPage exposes the captcha modal controls.
type CaptchaPage interface {
	CaptchaImage(ctx context.Context) (string, error)
	ReloadCaptcha(ctx context.Context) error
	SubmitCaptcha(ctx context.Context, answer string) error
}

// PageView reads the rendered search results.
type PageView interface {
	// ResultCount returns the raw text of the results counter.
	ResultCount(ctx context.Context) (string, error)
	// RowField returns one field of the 1-based result row.
	RowField(ctx context.Context, index int, field Field) (string, error)
}

// Session is one browser session. Close must always be called.
type Session interface {
	SearchPage
	CaptchaPage
	PageView
	Close() error
}

// Recognizer turns a base64 captcha image into text.
type Recognizer interface {
	Recognize(ctx context.Context, base64Image string) (string, error)
}

// Publisher pushes a record to the social feed.
type Publisher interface {
	Publish(ctx context.Context, record Record) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}
