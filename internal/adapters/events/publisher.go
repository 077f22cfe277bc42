// Package events mirrors room notifications onto a Redis pub/sub channel so
// other processes can observe room activity.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultChannel = "syncroom:events"

// Message is what goes on the wire.
type Message struct {
	Room       domain.RoomCode  `json:"room"`
	Recipients []core.SessionID `json:"recipients"`
	Type       string           `json:"type"`
	Payload    any              `json:"payload,omitempty"`
	At         time.Time        `json:"at"`
}

// Publisher implements core.Notifier. Notify only enqueues; Run drains the
// queue and publishes. A full queue drops the message.
type Publisher struct {
	rdb     redis.Cmdable
	channel string
	queue   chan Message

	once sync.Once
	done chan struct{}
}

func NewPublisher(rdb redis.Cmdable, channel string, buffer int) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		rdb:     rdb,
		channel: channel,
		queue:   make(chan Message, buffer),
		done:    make(chan struct{}),
	}
}

func (p *Publisher) Notify(n core.Notification) {
	msg := Message{
		Room:       n.Room,
		Recipients: n.Recipients,
		Type:       n.Event.Type,
		Payload:    n.Event.Payload,
		At:         time.Now().UTC(),
	}
	select {
	case p.queue <- msg:
	default:
		log.Warn().Str("module", "adapters.events").Str("room", string(n.Room)).Str("type", n.Event.Type).Msg("event queue full, dropped")
	}
}

// Run publishes queued messages until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	defer p.once.Do(func() { close(p.done) })
	log.Info().Str("module", "adapters.events").Str("channel", p.channel).Msg("event mirror started")
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case msg := <-p.queue:
			p.publish(context.Background(), msg)
		}
	}
}

// Done is closed when Run has returned.
func (p *Publisher) Done() <-chan struct{} { return p.done }

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.publish(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.events").Msg("marshal event")
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.events").Msg("publish event")
	}
}
