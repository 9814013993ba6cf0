package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type fakeAPI struct {
	mu        sync.Mutex
	filename  string
	uploaded  []byte
	tweet     tweetRequest
	authHdrs  []string
	uploadErr bool
}

func (f *fakeAPI) handler(t *testing.T, photo []byte) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/photo.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(photo)
	})
	mux.HandleFunc("/media/upload.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHdrs = append(f.authHdrs, r.Header.Get("Authorization"))
		if f.uploadErr {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":[{"message":"forbidden"}]}`))
			return
		}
		file, header, err := r.FormFile("media")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		f.filename = header.Filename
		f.uploaded, _ = io.ReadAll(file)
		_, _ = w.Write([]byte(`{"media_id":710511363345354753,"media_id_string":"710511363345354753"}`))
	})
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHdrs = append(f.authHdrs, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.tweet))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1445880548472328192","text":"ok"}}`))
	})
	return mux
}

func newTestPublisher(t *testing.T, srv *httptest.Server) *Publisher {
	t.Helper()
	pub, err := New(Config{
		APIKey:       "ck",
		APISecret:    "cs",
		AccessToken:  "at",
		AccessSecret: "as",
		UploadURL:    srv.URL + "/media/upload.json",
		TweetURL:     srv.URL + "/2/tweets",
	}, nil)
	require.NoError(t, err)
	return pub
}

func TestPublishUploadsPNGAndPostsCaption(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t, jpegBytes(t)))
	defer srv.Close()

	pub := newTestPublisher(t, srv)
	rec := bid.Record{
		Name:         "João",
		Photo:        srv.URL + "/photo.jpg",
		Timestamp:    "01/01/2024 10:00",
		Nickname:     "Joãozinho",
		ContractType: "EMPRESTIMO",
	}
	require.NoError(t, pub.Publish(context.Background(), rec))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, "Jo%C3%A3o_photo.png", api.filename)
	_, format, err := image.Decode(bytes.NewReader(api.uploaded))
	require.NoError(t, err)
	require.Equal(t, "png", format)

	require.Equal(t, "Joãozinho publicado no BID em 01/01/2024 10:00 - tipo de contrato: EMPRESTIMO", api.tweet.Text)
	require.NotNil(t, api.tweet.Media)
	require.Equal(t, []string{"710511363345354753"}, api.tweet.Media.MediaIDs)

	require.Len(t, api.authHdrs, 2)
	for _, h := range api.authHdrs {
		require.True(t, strings.HasPrefix(h, "OAuth "), "requests must be OAuth1 signed: %q", h)
		require.Contains(t, h, `oauth_consumer_key="ck"`)
		require.Contains(t, h, `oauth_token="at"`)
	}
}

func TestPublishUploadRejected(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{uploadErr: true}
	srv := httptest.NewServer(api.handler(t, jpegBytes(t)))
	defer srv.Close()

	pub := newTestPublisher(t, srv)
	err := pub.Publish(context.Background(), bid.Record{Name: "A", Photo: srv.URL + "/photo.jpg"})
	require.ErrorContains(t, err, "upload media: status 403")
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Empty(t, api.tweet.Text)
}

func TestPublishMalformedPhoto(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t, []byte("not an image")))
	defer srv.Close()

	pub := newTestPublisher(t, srv)
	err := pub.Publish(context.Background(), bid.Record{Name: "A", Photo: srv.URL + "/photo.jpg"})
	require.ErrorContains(t, err, "decode photo")
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Empty(t, api.authHdrs, "nothing is uploaded when the photo is unusable")
}

func TestPublishPhotoNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	pub := newTestPublisher(t, srv)
	err := pub.Publish(context.Background(), bid.Record{Name: "A", Photo: srv.URL + "/missing.png"})
	require.ErrorContains(t, err, "fetch photo: unexpected status 404")
}

func TestToPNGPassesThroughPNG(t *testing.T) {
	t.Parallel()

	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, image.NewGray(image.Rect(0, 0, 2, 2))))
	out, err := ToPNG(src.Bytes())
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 2, cfg.Width)
}

func TestPhotoFilename(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Jo%C3%A3o%20Silva_photo.png", PhotoFilename("João Silva"))
	require.Equal(t, "plain_photo.png", PhotoFilename("plain"))
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := New(Config{APIKey: "k"}, nil)
	require.Error(t, err)

	pub, err := New(Config{APIKey: "a", APISecret: "b", AccessToken: "c", AccessSecret: "d"}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultUploadURL, pub.cfg.UploadURL)
	require.Equal(t, DefaultTweetURL, pub.cfg.TweetURL)
}
