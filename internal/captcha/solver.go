// Package captcha answers the registry's image captcha through an OCR collaborator.
package captcha

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/bid"
	"github.com/JakeFAU/bidwatcher/internal/metrics"
)

// AnswerLength is the only answer length the site accepts.
const AnswerLength = 4

// DefaultMaxAttempts bounds the reload-and-retry loop.
const DefaultMaxAttempts = 10

var dataURIPrefix = regexp.MustCompile(`^data:image/.+;base64,`)

// Solver fetches, recognizes, validates, and submits captcha answers.
type Solver struct {
	recognizer  bid.Recognizer
	maxAttempts int
	logger      *zap.Logger
}

// New constructs a Solver. maxAttempts <= 0 selects DefaultMaxAttempts.
func New(recognizer bid.Recognizer, maxAttempts int, logger *zap.Logger) *Solver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{
		recognizer:  recognizer,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Solve loops until a 4-character answer is submitted or attempts run out.
// Rejected answers are never typed into the form; a fresh image is requested instead.
func (s *Solver) Solve(ctx context.Context, page bid.CaptchaPage) (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("solve captcha: %w", err)
		}

		src, err := page.CaptchaImage(ctx)
		if err != nil {
			return "", fmt.Errorf("read captcha image: %w", err)
		}

		answer, err := s.recognizer.Recognize(ctx, StripDataURI(src))
		switch {
		case err != nil && ctx.Err() != nil:
			return "", fmt.Errorf("recognize captcha: %w", err)
		case err != nil:
			metrics.ObserveCaptchaAttempt("error")
			s.logger.Warn("captcha recognition failed", zap.Int("attempt", attempt), zap.Error(err))
		default:
			if normalized, ok := Validate(answer); ok {
				if err := page.SubmitCaptcha(ctx, normalized); err != nil {
					return "", fmt.Errorf("submit captcha: %w", err)
				}
				metrics.ObserveCaptchaAttempt("accepted")
				s.logger.Info("captcha answered", zap.Int("attempt", attempt))
				return normalized, nil
			}
			metrics.ObserveCaptchaAttempt("rejected")
			s.logger.Warn("captcha answer not valid, retrying",
				zap.Int("attempt", attempt),
				zap.String("answer", answer),
			)
		}

		if attempt == s.maxAttempts {
			break
		}
		if err := page.ReloadCaptcha(ctx); err != nil {
			return "", fmt.Errorf("reload captcha: %w", err)
		}
	}
	return "", fmt.Errorf("%w after %d attempts", bid.ErrCaptchaUnsolvable, s.maxAttempts)
}

// StripDataURI removes a leading data:image/...;base64, prefix.
func StripDataURI(src string) string {
	return dataURIPrefix.ReplaceAllString(src, "")
}

// Validate strips whitespace and accepts answers of exactly AnswerLength characters.
func Validate(answer string) (string, bool) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, answer)
	return normalized, utf8.RuneCountInString(normalized) == AnswerLength
}
