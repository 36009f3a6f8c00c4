package web

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/metrics"
	"github.com/ftl/wsprglobe/core/spots"
	"github.com/ftl/wsprglobe/core/timelapse"
)

// DefaultKeepaliveInterval between keep-alive comments on an idle stream.
const DefaultKeepaliveInterval = 30 * time.Second

const subscriberBuffer = 64

// Message types of the event stream.
const (
	PayloadMessage  = "payload"
	ProgressMessage = "progress"
	StatusMessage   = "status"
	StatsMessage    = "stats"
)

type message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewStream returns a new stream without subscribers.
func NewStream() *Stream {
	return &Stream{
		dataLock:          new(sync.Mutex),
		subscribers:       make(map[chan []byte]bool),
		latest:            make(map[string][]byte),
		keepaliveInterval: DefaultKeepaliveInterval,
	}
}

// Stream fans out everything the application shows to the connected browsers as server-sent events.
// A new subscriber first receives the latest message of each type.
type Stream struct {
	dataLock    *sync.Mutex
	subscribers map[chan []byte]bool
	latest      map[string][]byte

	keepaliveInterval time.Duration
}

// ShowPayload publishes the render payload.
func (s *Stream) ShowPayload(payload core.Payload) {
	s.publish(PayloadMessage, payload)
}

// ShowProgress publishes the time-lapse progress.
func (s *Stream) ShowProgress(progress timelapse.Progress) {
	s.publish(ProgressMessage, progress)
}

// ShowStatus publishes the status line.
func (s *Stream) ShowStatus(status core.Status) {
	s.publish(StatusMessage, status)
}

// ShowStats publishes the statistics.
func (s *Stream) ShowStats(stats spots.Stats) {
	s.publish(StatsMessage, stats)
}

func (s *Stream) publish(messageType string, data interface{}) {
	bytes, err := json.Marshal(message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("cannot marshal %s message: %v", messageType, err)
		return
	}

	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	s.latest[messageType] = bytes
	for subscriber := range s.subscribers {
		select {
		case subscriber <- bytes:
			continue
		default:
		}
		// the subscriber hangs, make room for the newest message
		select {
		case <-subscriber:
		default:
		}
		select {
		case subscriber <- bytes:
			log.Printf("stream subscriber hangs, dropped its oldest message for a %s message", messageType)
		default:
			log.Printf("stream subscriber hangs, dropping %s message", messageType)
		}
	}
}

// Subscribe returns a channel of encoded messages and a function to cancel the subscription.
func (s *Stream) Subscribe() (<-chan []byte, func()) {
	subscriber := make(chan []byte, subscriberBuffer)

	s.dataLock.Lock()
	for _, messageType := range []string{StatusMessage, StatsMessage, PayloadMessage, ProgressMessage} {
		if bytes, ok := s.latest[messageType]; ok {
			subscriber <- bytes
		}
	}
	s.subscribers[subscriber] = true
	s.dataLock.Unlock()

	cancel := func() {
		s.dataLock.Lock()
		defer s.dataLock.Unlock()
		delete(s.subscribers, subscriber)
	}
	return subscriber, cancel
}

// Subscribers returns the number of connected subscribers.
func (s *Stream) Subscribers() int {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	return len(s.subscribers)
}

// Serve the event stream until the client disconnects.
func (s *Stream) Serve(c *gin.Context) {
	messages, cancel := s.Subscribe()
	defer cancel()

	metrics.StreamConnected()
	start := time.Now()
	log.Printf("stream connected: %s", c.ClientIP())
	defer func() {
		metrics.StreamDisconnected()
		log.Printf("stream disconnected: %s after %v", c.ClientIP(), time.Since(start).Round(time.Second))
	}()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// jittered reconnect delay of 3 to 7 seconds
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	w.Flush()

	keepalive := time.NewTicker(s.keepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case bytes := <-messages:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", bytes); err != nil {
				log.Printf("stream send error: %v", err)
				return
			}
			w.Flush()
			keepalive.Reset(s.keepaliveInterval)
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				log.Printf("stream keepalive error: %v", err)
				return
			}
			w.Flush()
		}
	}
}
