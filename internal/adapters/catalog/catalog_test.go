package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fakeYouTube(t *testing.T, videosStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var searches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			searches.Add(1)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			assert.Equal(t, "lofi", r.URL.Query().Get("q"))
			assert.Equal(t, []string{partID, partSnippet}, r.URL.Query()["part"])
			assert.Equal(t, []string{typeVideo}, r.URL.Query()["type"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []any{
					map[string]any{
						"id": map[string]any{"videoId": "abc"},
						"snippet": map[string]any{
							"title":        "Lofi Beats",
							"channelTitle": "Chill",
							"thumbnails":   map[string]any{"medium": map[string]any{"url": "http://img/abc"}},
						},
					},
					map[string]any{"id": map[string]any{"channelId": "skip-me"}},
					map[string]any{
						"id":      map[string]any{"videoId": "def"},
						"snippet": map[string]any{"title": "Rain"},
					},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/videos"):
			if videosStatus != http.StatusOK {
				w.WriteHeader(videosStatus)
				_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
				return
			}
			assert.Equal(t, "abc,def", r.URL.Query().Get("id"))
			assert.Equal(t, []string{partContentDetails}, r.URL.Query()["part"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []any{
					map[string]any{"id": "abc", "contentDetails": map[string]any{"duration": "PT1H2M3S"}},
					map[string]any{"id": "def", "contentDetails": map[string]any{"duration": "PT45S"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &searches
}

func TestYouTubeSearcher_SearchWithDurations(t *testing.T) {
	srv, _ := fakeYouTube(t, http.StatusOK)
	s, err := NewYouTubeSearcher(context.Background(), "test-key", srv.URL+"/", 5)
	require.NoError(t, err)

	videos, err := s.Search(context.Background(), " lofi ", 0)
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Equal(t, Video{
		VideoID:      "abc",
		Title:        "Lofi Beats",
		ChannelTitle: "Chill",
		Thumbnail:    "http://img/abc",
		URL:          "https://www.youtube.com/watch?v=abc",
		Duration:     "PT1H2M3S",
		Seconds:      3723,
	}, videos[0])
	assert.Equal(t, int64(45), videos[1].Seconds)
}

func TestYouTubeSearcher_DurationFailureKeepsResults(t *testing.T) {
	srv, _ := fakeYouTube(t, http.StatusInternalServerError)
	s, err := NewYouTubeSearcher(context.Background(), "test-key", srv.URL+"/", 5)
	require.NoError(t, err)

	videos, err := s.Search(context.Background(), "lofi", 3)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Empty(t, videos[0].Duration)
	assert.Zero(t, videos[0].Seconds)
}

func TestYouTubeSearcher_EmptyQuery(t *testing.T) {
	s, err := NewYouTubeSearcher(context.Background(), "test-key", "http://127.0.0.1:1/", 5)
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxLimit, clampLimit(500))
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	args := m.Called(ctx, query, limit)
	v, _ := args.Get(0).([]Video)
	return v, args.Error(1)
}

func TestCachedSearcher_HitsRedisOnSecondCall(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	next := &mockSearcher{}
	want := []Video{{VideoID: "abc", Title: "Lofi"}}
	next.On("Search", mock.Anything, "Lofi", 5).Return(want, nil).Once()

	c := NewCachedSearcher(next, rdb, time.Minute)
	got, err := c.Search(context.Background(), "Lofi", 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = c.Search(context.Background(), "Lofi", 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	next.AssertExpectations(t)

	assert.True(t, mr.Exists(cacheKey("lofi", 5)))
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(cacheKey("lofi", 5)))
}

func TestCachedSearcher_UpstreamErrorIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	boom := errors.New("quota exceeded")
	next := &mockSearcher{}
	next.On("Search", mock.Anything, "x", 1).Return(nil, boom)

	c := NewCachedSearcher(next, rdb, time.Minute)
	_, err := c.Search(context.Background(), "x", 1)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mr.Keys())
}

func TestCachedSearcher_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	next := &mockSearcher{}
	next.On("Search", mock.Anything, "x", 1).Return([]Video{{VideoID: "v"}}, nil)

	c := NewCachedSearcher(next, rdb, time.Minute)
	got, err := c.Search(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCachedSearcher_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set(cacheKey("x", 1), "{not json"))

	next := &mockSearcher{}
	next.On("Search", mock.Anything, "x", 1).Return([]Video{{VideoID: "v"}}, nil).Once()

	c := NewCachedSearcher(next, rdb, time.Minute)
	got, err := c.Search(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Equal(t, "v", got[0].VideoID)
	next.AssertExpectations(t)
}
