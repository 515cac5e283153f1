// Package breakouts feeds breakout-room membership changes published on NATS
// into the session manager.
package breakouts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
)

// EventType names a membership change
type EventType string

const (
	EventAdded    EventType = "added"
	EventRemoved  EventType = "removed"
	EventSnapshot EventType = "snapshot"
)

// Event is one membership change for a meeting. The meeting is the last part
// of the subject the event was published on.
type Event struct {
	Type   EventType             `json:"type"`
	RoomID string                `json:"room_id,omitempty"`
	Name   string                `json:"name,omitempty"`
	Rooms  []models.BreakoutRoom `json:"rooms,omitempty"`
}

var ErrUnknownEvent = errors.New("unknown breakout event")

// Rooms is where events are applied
type Rooms interface {
	AddBreakoutRoom(meetingID string, room models.BreakoutRoom) (models.BreakoutRoom, error)
	RemoveBreakoutRoom(meetingID, roomID string) error
	SetBreakoutRooms(meetingID string, rooms []models.BreakoutRoom) ([]models.BreakoutRoom, error)
}

// Apply applies one event to the rooms of a meeting
func Apply(rooms Rooms, meetingID string, event Event) error {
	switch event.Type {
	case EventAdded:
		if event.RoomID == "" {
			return fmt.Errorf("added event without room_id")
		}
		_, err := rooms.AddBreakoutRoom(meetingID, models.BreakoutRoom{
			ID:   event.RoomID,
			Name: event.Name,
		})
		return err
	case EventRemoved:
		if event.RoomID == "" {
			return fmt.Errorf("removed event without room_id")
		}
		return rooms.RemoveBreakoutRoom(meetingID, event.RoomID)
	case EventSnapshot:
		_, err := rooms.SetBreakoutRooms(meetingID, event.Rooms)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}
}

// Subscriber applies the events published under a subject prefix
type Subscriber struct {
	conn   *nats.Conn
	prefix string
	rooms  Rooms

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewSubscriber connects to NATS with automatic reconnection support.
// Extra nats.Option values can be appended.
func NewSubscriber(url, prefix string, rooms Rooms, opts ...nats.Option) (*Subscriber, error) {
	defaults := []nats.Option{
		nats.Name("audiojoin-manager"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.Warnf("Breakout feed disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.Infof("Breakout feed reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Subscriber{
		conn:   nc,
		prefix: strings.TrimSuffix(prefix, "."),
		rooms:  rooms,
	}, nil
}

// Subject returns the subject events for a meeting are published on
func (s *Subscriber) Subject(meetingID string) string {
	return s.prefix + "." + meetingID
}

// Start subscribes to every meeting under the prefix. NATS runs the handler
// for one subscription serially, so events of a meeting apply in order.
func (s *Subscriber) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return fmt.Errorf("breakout feed already started")
	}

	sub, err := s.conn.Subscribe(s.prefix+".>", s.handle)
	if err != nil {
		return fmt.Errorf("subscribing to %s.>: %w", s.prefix, err)
	}
	// Make sure the server knows about the subscription before returning
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}
	s.sub = sub

	logrus.Infof("Breakout feed listening on %s.>", s.prefix)
	return nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	meetingID := strings.TrimPrefix(msg.Subject, s.prefix+".")
	log := logrus.WithFields(logrus.Fields{
		"meeting_id": meetingID,
		"subject":    msg.Subject,
	})

	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Warnf("Dropping unreadable breakout event: %v", err)
		return
	}

	if err := Apply(s.rooms, meetingID, event); err != nil {
		log.Warnf("Failed to apply %s breakout event: %v", event.Type, err)
		return
	}
	log.Debugf("Applied %s breakout event", event.Type)
}

// Close unsubscribes and closes the connection
func (s *Subscriber) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
	s.conn.Close()
	return nil
}
