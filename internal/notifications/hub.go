package notifications

import (
	"sync"
	"time"

	"github.com/vigil-app/vigil/pkg/metrics"
)

const defaultChannelBuffer = 16

// DeviceRef identifies the originating device inside a delivery payload.
type DeviceRef struct {
	Code     string `json:"device_code"`
	Location string `json:"location,omitempty"`
}

// Payload is the event representation pushed to live subscribers. It mirrors
// what a poll of the inbox would return so clients can render either source
// the same way.
type Payload struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"payload,omitempty"`
	Device    DeviceRef      `json:"device"`
	CreatedAt time.Time      `json:"created_at"`
}

// Channel is one live delivery handle for one open stream. It is created by
// Hub.Register and closed exactly once when deregistered.
type Channel struct {
	send chan Payload
	once sync.Once
}

// Receive exposes the stream of payloads published to this channel. The
// channel is closed when the session deregisters, which unblocks any reader.
func (c *Channel) Receive() <-chan Payload {
	return c.send
}

func (c *Channel) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub maps subscriber identities to their open live channels and fans
// published payloads out to them. All state is in-memory; a restart simply
// drops live sessions and clients fall back to polling the inbox.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Channel]struct{}
	buffer   int
}

// Option customises hub construction.
type Option func(*Hub)

// WithChannelBuffer overrides the per-channel queue depth.
func WithChannelBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.buffer = size
		}
	}
}

// NewHub constructs an empty delivery hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		channels: make(map[string]map[*Channel]struct{}),
		buffer:   defaultChannelBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register creates a live channel for the user and adds it to the registry.
func (h *Hub) Register(userID string) *Channel {
	ch := &Channel{send: make(chan Payload, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[userID] == nil {
		h.channels[userID] = make(map[*Channel]struct{})
	}
	h.channels[userID][ch] = struct{}{}

	metrics.OpenStreams.Inc()
	return ch
}

// Deregister removes the channel and closes it. Removing the last channel
// for a user drops the user's registry entry entirely. Calling Deregister
// twice for the same channel is harmless.
func (h *Hub) Deregister(userID string, ch *Channel) {
	if ch == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.channels[userID]
	if set == nil {
		return
	}
	if _, registered := set[ch]; !registered {
		return
	}

	delete(set, ch)
	if len(set) == 0 {
		delete(h.channels, userID)
	}

	// Closing under the write lock guarantees no Publish is mid-send.
	ch.close()
	metrics.OpenStreams.Dec()
}

// Publish enqueues the payload to every open channel for the user. It is
// fire-and-forget: no registered channels is a silent no-op, and a full
// channel drops the payload for that channel only. The durable inbox row is
// the source of truth; live delivery is best effort.
func (h *Hub) Publish(userID string, payload Payload) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.channels[userID] {
		select {
		case ch.send <- payload:
			metrics.LiveDeliveries.WithLabelValues("sent").Inc()
		default:
			metrics.LiveDeliveries.WithLabelValues("dropped").Inc()
		}
	}
}

// Subscribers reports the number of open channels for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.channels[userID])
}
