// Package memory contains an in-memory publisher used for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// Publisher stores published records for inspection instead of posting them.
type Publisher struct {
	mu     sync.RWMutex
	posts  []Post
	err    error
	logger *zap.Logger
}

// Post captures one publish call.
type Post struct {
	Record  bid.Record
	Caption string
}

// New returns a memory Publisher. A nil logger disables logging.
func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

// FailWith makes subsequent Publish calls return err (nil restores success).
// Failed calls are still recorded.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish records the post.
func (p *Publisher) Publish(_ context.Context, record bid.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, Post{Record: record, Caption: record.Caption()})
	if p.err != nil {
		return p.err
	}
	p.logger.Info("dry-run publish", zap.String("caption", record.Caption()), zap.String("photo", record.Photo))
	return nil
}

// Posts returns the recorded publishes.
func (p *Publisher) Posts() []Post {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Post, len(p.posts))
	copy(out, p.posts)
	return out
}
