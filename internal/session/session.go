// Package session holds the per-connection protocol logic: it turns inbound
// events into registry operations and relays.
package session

import (
	"go.uber.org/zap"

	"github.com/GamjaUnni/nicecatch-backend/internal/events"
	"github.com/GamjaUnni/nicecatch-backend/internal/relay"
	"github.com/GamjaUnni/nicecatch-backend/internal/room"
)

// State tracks where a session is in its lifecycle. A session joins at most
// one room and never rejoins after that.
type State int

const (
	Unjoined State = iota
	Joined
	Closed
)

// Session handles events for one connection. Events arrive strictly in
// order from the connection's read loop, so no internal locking is needed;
// shared state lives in the registry and the hub, which lock themselves.
type Session struct {
	connID   string
	registry *room.Registry
	dispatch *relay.Dispatcher
	log      *zap.SugaredLogger

	state  State
	roomID string
}

func New(connID string, registry *room.Registry, dispatch *relay.Dispatcher, log *zap.SugaredLogger) *Session {
	return &Session{
		connID:   connID,
		registry: registry,
		dispatch: dispatch,
		log:      log.With("conn", connID),
	}
}

func (s *Session) State() State { return s.state }

// Room returns the joined room id, empty while Unjoined.
func (s *Session) Room() string { return s.roomID }

// Handle processes one inbound event. A malformed payload never kills the
// session: it is logged and dropped.
func (s *Session) Handle(env events.Envelope) {
	if s.state == Closed {
		return
	}
	switch env.Event {
	case events.JoinRoom:
		s.handleJoin(env)
	case events.SendMessage:
		s.handleSendMessage(env)
	case events.MyRoomInfo:
		s.handleRoomInfo(env)
	case events.StartCall:
		s.handleStartCall(env)
	case events.WebRTCOffer:
		s.handleSignal(env, events.WebRTCOffer)
	case events.WebRTCAnswer:
		s.handleSignal(env, events.WebRTCAnswer)
	case events.WebRTCCandidate:
		s.handleCandidate(env)
	default:
		// DecodeInbound already closed the set; nothing reaches here.
		s.log.Warnw("unhandled event", "event", env.Event)
	}
}

func (s *Session) handleJoin(env events.Envelope) {
	if s.state == Joined {
		s.log.Warnw("join_room on already joined session", "room", s.roomID)
		return
	}
	d, err := events.DecodeJoinRoom(env.Data)
	if err != nil {
		s.log.Warnw("malformed join_room", "err", err)
		return
	}

	outcome := s.registry.Join(d.Room, room.Participant{
		Username: d.Username,
		ConnID:   s.connID,
	})
	s.log.Infow("join_room", "room", d.Room, "username", d.Username, "outcome", outcome.String())

	switch outcome {
	case room.RoomFull:
		s.dispatch.Unicast(s.connID, events.FullRoom, events.FullRoomData{Msg: "full"})
		return
	case room.CreatedNew:
		s.dispatch.Unicast(s.connID, events.VideoChatConnectInit, d.Raw)
	case room.JoinedExisting:
		s.dispatch.Unicast(s.connID, events.VideoChatConnect, d.Raw)
	}

	s.state = Joined
	s.roomID = d.Room
	s.dispatch.Tag(s.connID, d.Room)
}

func (s *Session) handleSendMessage(env events.Envelope) {
	d, err := events.DecodeRoomScoped(env.Data)
	if err != nil {
		s.log.Warnw("malformed send_message", "err", err)
		return
	}
	// Chat relays the whole inbound payload; the room comes from the
	// payload, not from the session's joined room.
	s.dispatch.BroadcastExceptSender(d.Room, s.connID, events.ReceiveMessage, d.Raw)
}

func (s *Session) handleRoomInfo(env events.Envelope) {
	d, err := events.DecodeRoomScoped(env.Data)
	if err != nil {
		s.log.Warnw("malformed myRoomInfo", "err", err)
		return
	}
	members := s.registry.Members(d.Room)
	s.dispatch.Unicast(s.connID, events.MyRoomUserInfo, events.MemberListData{Data: members})
}

func (s *Session) handleStartCall(env events.Envelope) {
	roomID, err := events.DecodeStartCall(env.Data)
	if err != nil {
		s.log.Warnw("malformed startCall", "err", err)
		return
	}
	s.log.Debugw("broadcast startCall", "room", roomID)
	members := s.registry.Members(roomID)
	s.dispatch.BroadcastExceptSender(roomID, s.connID, events.MyRoomUserInfo, events.MemberListData{Data: members})
	s.dispatch.BroadcastExceptSender(roomID, s.connID, events.StartCall, nil)
}

func (s *Session) handleSignal(env events.Envelope, kind events.Kind) {
	d, err := events.DecodeSignal(env.Data)
	if err != nil {
		s.log.Warnw("malformed signal", "event", kind, "err", err)
		return
	}
	s.log.Debugw("broadcast signal", "event", kind, "room", d.Room)
	// Only the SDP blob travels; the room field is addressing, not payload.
	s.dispatch.BroadcastExceptSender(d.Room, s.connID, kind, d.SDP)
}

func (s *Session) handleCandidate(env events.Envelope) {
	d, err := events.DecodeRoomScoped(env.Data)
	if err != nil {
		s.log.Warnw("malformed webrtcIceCandidate", "err", err)
		return
	}
	// ICE candidates relay the entire inbound payload, room field included.
	s.dispatch.BroadcastExceptSender(d.Room, s.connID, events.WebRTCCandidate, d.Raw)
}

// Disconnect finishes the session: the participant is removed from
// whichever room holds it. Safe to call on a session that never joined.
func (s *Session) Disconnect() {
	if s.state == Closed {
		return
	}
	s.state = Closed
	if roomID, removed := s.registry.Leave(s.connID); removed {
		s.log.Infow("left room on disconnect", "room", roomID)
	}
}
