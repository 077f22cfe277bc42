package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sosodev/duration"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	typeVideo          = "video"
	partID             = "id"
	partSnippet        = "snippet"
	partContentDetails = "contentDetails"
)

type YouTubeSearcher struct {
	youtube *youtube.Service
	limit   int
}

// NewYouTubeSearcher builds a client for the YouTube Data API. endpoint may be
// empty to use the public API.
func NewYouTubeSearcher(ctx context.Context, apiKey, endpoint string, limit int, opts ...option.ClientOption) (*YouTubeSearcher, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &YouTubeSearcher{youtube: service, limit: clampLimit(limit)}, nil
}

func (s *YouTubeSearcher) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.limit
	}

	response, err := s.youtube.Search.List([]string{partID, partSnippet}).
		Q(query).
		Type(typeVideo).
		MaxResults(int64(clampLimit(limit))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	out := make([]Video, 0, len(response.Items))
	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		v := Video{
			VideoID: item.Id.VideoId,
			URL:     "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		}
		if sn := item.Snippet; sn != nil {
			v.Title = sn.Title
			v.ChannelTitle = sn.ChannelTitle
			v.Thumbnail = thumbnail(sn.Thumbnails)
		}
		out = append(out, v)
		ids = append(ids, v.VideoID)
	}
	if len(ids) == 0 {
		return out, nil
	}

	durations, err := s.durations(ctx, ids)
	if err != nil {
		// Results are still useful without durations.
		log.Warn().Err(err).Str("module", "adapters.catalog").Str("query", query).Msg("fetch durations")
		return out, nil
	}
	for i := range out {
		if d, ok := durations[out[i].VideoID]; ok {
			out[i].Duration = d.raw
			out[i].Seconds = d.seconds
		}
	}
	return out, nil
}

type videoDuration struct {
	raw     string
	seconds int64
}

func (s *YouTubeSearcher) durations(ctx context.Context, ids []string) (map[string]videoDuration, error) {
	resp, err := s.youtube.Videos.List([]string{partContentDetails}).
		Id(strings.Join(ids, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]videoDuration, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails == nil {
			continue
		}
		raw := item.ContentDetails.Duration
		d, err := duration.Parse(raw)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.catalog").Str("video", item.Id).Str("duration", raw).Msg("bad duration")
			out[item.Id] = videoDuration{raw: raw}
			continue
		}
		out[item.Id] = videoDuration{raw: raw, seconds: durationOnSecond(d)}
	}
	return out, nil
}

func durationOnSecond(d *duration.Duration) int64 {
	return int64(d.Seconds) + int64(d.Minutes)*60 + int64(d.Hours)*3600 + int64(d.Days)*86400
}

func thumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
