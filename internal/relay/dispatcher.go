// Package relay addresses outbound events: either one connection, or every
// connection tagged to a room except the sender. Delivery is fire and
// forget; nothing here waits on a peer.
package relay

import (
	"go.uber.org/zap"

	"github.com/GamjaUnni/nicecatch-backend/internal/events"
)

// Emitter is the transport side of delivery. The websocket hub implements
// it in production; tests substitute a recorder.
type Emitter interface {
	// Tag marks a connection as a member of a room channel so room-scoped
	// broadcast can resolve it.
	Tag(connID, roomID string)
	// Unicast delivers one frame to one connection.
	Unicast(connID string, frame []byte)
	// BroadcastExcept delivers one frame to every connection tagged to
	// roomID other than senderID.
	BroadcastExcept(roomID, senderID string, frame []byte)
}

// Dispatcher encodes events and hands them to the emitter.
type Dispatcher struct {
	emitter Emitter
	log     *zap.SugaredLogger
}

func NewDispatcher(emitter Emitter, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{emitter: emitter, log: log}
}

// Tag registers connID with the transport's room channel.
func (d *Dispatcher) Tag(connID, roomID string) {
	d.emitter.Tag(connID, roomID)
}

// Unicast sends event to exactly one connection.
func (d *Dispatcher) Unicast(connID string, event events.Kind, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		d.log.Warnw("drop undeliverable event", "event", event, "err", err)
		return
	}
	d.emitter.Unicast(connID, frame)
}

// BroadcastExceptSender sends event to every other connection in the room.
func (d *Dispatcher) BroadcastExceptSender(roomID, senderID string, event events.Kind, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		d.log.Warnw("drop undeliverable event", "event", event, "err", err)
		return
	}
	d.emitter.BroadcastExcept(roomID, senderID, frame)
}
