// Package twitter publishes records as photo posts on X (Twitter).
package twitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// Default API endpoints.
const (
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	DefaultTweetURL  = "https://api.twitter.com/2/tweets"
)

// Config holds OAuth 1.0a user credentials and endpoints.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	UploadURL    string
	TweetURL     string
	Timeout      time.Duration
}

// Publisher implements bid.Publisher against the X API.
type Publisher struct {
	cfg    Config
	api    *resty.Client
	photos *resty.Client
	logger *zap.Logger
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// New builds a Publisher.
func New(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.AccessToken == "" || cfg.AccessSecret == "" {
		return nil, errors.New("twitter credentials are required")
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.TweetURL == "" {
		cfg.TweetURL = DefaultTweetURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	signed := oauthCfg.Client(context.Background(), oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))

	return &Publisher{
		cfg:    cfg,
		api:    resty.NewWithClient(signed).SetTimeout(cfg.Timeout),
		photos: resty.New().SetTimeout(cfg.Timeout),
		logger: logger,
	}, nil
}

// Publish downloads the record photo, uploads it, and posts the caption.
func (p *Publisher) Publish(ctx context.Context, record bid.Record) error {
	photo, err := p.fetchPhoto(ctx, record.Photo)
	if err != nil {
		return err
	}
	filename := PhotoFilename(record.Name)
	mediaID, err := p.uploadMedia(ctx, filename, photo)
	if err != nil {
		return err
	}
	tweetID, err := p.postStatus(ctx, record.Caption(), mediaID)
	if err != nil {
		return err
	}
	p.logger.Info("record published on twitter",
		zap.String("tweet_id", tweetID),
		zap.String("media_id", mediaID),
		zap.String("filename", filename),
	)
	return nil
}

// PhotoFilename builds the upload filename from the escaped display name.
func PhotoFilename(name string) string {
	return url.PathEscape(name) + "_photo.png"
}

// fetchPhoto downloads the image and re-encodes it as PNG.
func (p *Publisher) fetchPhoto(ctx context.Context, photoURL string) ([]byte, error) {
	res, err := p.photos.R().SetContext(ctx).Get(photoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch photo: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch photo: unexpected status %d", res.StatusCode())
	}
	return ToPNG(res.Body())
}

// ToPNG decodes a PNG, JPEG, or GIF image and encodes it as PNG.
func ToPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Publisher) uploadMedia(ctx context.Context, filename string, data []byte) (string, error) {
	var out mediaUploadResponse
	res, err := p.api.R().
		SetContext(ctx).
		SetFileReader("media", filename, bytes.NewReader(data)).
		SetResult(&out).
		ForceContentType("application/json").
		Post(p.cfg.UploadURL)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("upload media: status %d: %s", res.StatusCode(), res.String())
	}
	if out.MediaIDString == "" {
		return "", errors.New("upload media: empty media id")
	}
	return out.MediaIDString, nil
}

func (p *Publisher) postStatus(ctx context.Context, text, mediaID string) (string, error) {
	var out tweetResponse
	res, err := p.api.R().
		SetContext(ctx).
		SetBody(tweetRequest{Text: text, Media: &tweetMedia{MediaIDs: []string{mediaID}}}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(p.cfg.TweetURL)
	if err != nil {
		return "", fmt.Errorf("post status: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("post status: status %d: %s", res.StatusCode(), res.String())
	}
	return out.Data.ID, nil
}
