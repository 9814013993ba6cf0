package monitor

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixedIDs struct {
	mu sync.Mutex
	n  int
}

func (g *fixedIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "cycle-" + strconv.Itoa(g.n), nil
}

// fakeSession records every interaction and serves rows from memory.
type fakeSession struct {
	countText string
	rows      []bid.Record
	image     string

	calls        []string
	fieldLookups int
	submitted    []string
	closed       int

	navigateErr error
	rowErr      error
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.calls = append(s.calls, "navigate "+url)
	return s.navigateErr
}

func (s *fakeSession) FillSearch(_ context.Context, form bid.SearchForm) error {
	s.calls = append(s.calls, "fill "+form.Date+" "+form.State+" "+form.ClubID)
	return nil
}

func (s *fakeSession) SubmitSearch(context.Context) error {
	s.calls = append(s.calls, "submit")
	return nil
}

func (s *fakeSession) WaitCaptcha(context.Context) error {
	s.calls = append(s.calls, "wait captcha")
	return nil
}

func (s *fakeSession) CaptchaImage(context.Context) (string, error) {
	return s.image, nil
}

func (s *fakeSession) ReloadCaptcha(context.Context) error {
	s.calls = append(s.calls, "reload captcha")
	return nil
}

func (s *fakeSession) SubmitCaptcha(_ context.Context, answer string) error {
	s.calls = append(s.calls, "submit captcha")
	s.submitted = append(s.submitted, answer)
	return nil
}

func (s *fakeSession) ResultCount(context.Context) (string, error) {
	return s.countText, nil
}

func (s *fakeSession) RowField(_ context.Context, index int, field bid.Field) (string, error) {
	s.fieldLookups++
	if s.rowErr != nil {
		return "", s.rowErr
	}
	if index < 1 || index > len(s.rows) {
		return "", errors.New("row out of range")
	}
	r := s.rows[index-1]
	switch field {
	case bid.FieldName:
		return r.Name, nil
	case bid.FieldPhoto:
		return r.Photo, nil
	case bid.FieldTimestamp:
		return r.Timestamp, nil
	case bid.FieldNickname:
		return r.Nickname, nil
	case bid.FieldContractType:
		return r.ContractType, nil
	}
	return "", errors.New("unknown field")
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeBrowser struct {
	session *fakeSession
	opens   int
	err     error
}

func (b *fakeBrowser) Open(context.Context) (bid.Session, error) {
	b.opens++
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}

type stubSolver struct {
	err   error
	calls int
}

func (s *stubSolver) Solve(ctx context.Context, page bid.CaptchaPage) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if err := page.SubmitCaptcha(ctx, "ab12"); err != nil {
		return "", err
	}
	return "ab12", nil
}

type panickingSolver struct{}

func (panickingSolver) Solve(context.Context, bid.CaptchaPage) (string, error) {
	panic("solver exploded")
}

// slowSolver answers after delay without watching the context, like a
// recognizer that has already sent its request.
type slowSolver struct {
	delay time.Duration
}

func (s *slowSolver) Solve(ctx context.Context, page bid.CaptchaPage) (string, error) {
	time.Sleep(s.delay)
	if err := page.SubmitCaptcha(ctx, "ab12"); err != nil {
		return "", err
	}
	return "ab12", nil
}
