// Package events defines the wire protocol shared with the browser client.
// Event names are part of the client contract and are matched byte for byte
// against what the frontend emits and listens for.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GamjaUnni/nicecatch-backend/internal/room"
)

// Kind names one wire event. The set is closed: anything not listed below
// is rejected at decode time instead of being dispatched dynamically.
type Kind string

// Inbound events.
const (
	JoinRoom        Kind = "join_room"
	SendMessage     Kind = "send_message"
	MyRoomInfo      Kind = "myRoomInfo"
	StartCall       Kind = "startCall"
	WebRTCOffer     Kind = "webrtcOffer"
	WebRTCAnswer    Kind = "webrtcAnswer"
	WebRTCCandidate Kind = "webrtcIceCandidate"
)

// Outbound events. StartCall, WebRTCOffer, WebRTCAnswer and WebRTCCandidate
// are echoed under their inbound names.
const (
	FullRoom             Kind = "fullRoom"
	VideoChatConnectInit Kind = "videoChatConnectInit"
	VideoChatConnect     Kind = "videoChatConnect"
	ReceiveMessage       Kind = "receive_message"
	MyRoomUserInfo       Kind = "myRoomUserInfo"
)

// Envelope is the framing for every message in both directions.
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var ErrUnknownEvent = errors.New("unknown event")

// inboundKinds is the closed set accepted from clients.
var inboundKinds = map[Kind]struct{}{
	JoinRoom:        {},
	SendMessage:     {},
	MyRoomInfo:      {},
	StartCall:       {},
	WebRTCOffer:     {},
	WebRTCAnswer:    {},
	WebRTCCandidate: {},
}

// DecodeInbound parses one client frame and validates the event kind.
func DecodeInbound(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, ok := inboundKinds[env.Event]; !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return env, nil
}

// Encode frames an outbound event. payload may be nil for bare signals
// (the outbound startCall carries no data).
func Encode(event Kind, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// JoinRoomData is the join_room payload. Extra fields the client sends are
// kept in Raw so the join acks (videoChatConnect / videoChatConnectInit)
// can echo the payload untouched.
type JoinRoomData struct {
	Username string          `json:"username"`
	Room     string          `json:"room"`
	Raw      json.RawMessage `json:"-"`
}

func DecodeJoinRoom(data json.RawMessage) (JoinRoomData, error) {
	var d JoinRoomData
	if err := json.Unmarshal(data, &d); err != nil {
		return JoinRoomData{}, err
	}
	if d.Username == "" || d.Room == "" {
		return JoinRoomData{}, errors.New("join_room requires username and room")
	}
	d.Raw = data
	return d, nil
}

// RoomScopedData covers events whose payload is an object carrying at least
// a room id (send_message, myRoomInfo, webrtcIceCandidate). The rest of the
// payload is relayed verbatim via Raw.
type RoomScopedData struct {
	Room string          `json:"room"`
	Raw  json.RawMessage `json:"-"`
}

func DecodeRoomScoped(data json.RawMessage) (RoomScopedData, error) {
	var d RoomScopedData
	if err := json.Unmarshal(data, &d); err != nil {
		return RoomScopedData{}, err
	}
	if d.Room == "" {
		return RoomScopedData{}, errors.New("payload requires room")
	}
	d.Raw = data
	return d, nil
}

// SignalData is the webrtcOffer / webrtcAnswer payload. The SDP blob is
// opaque and relayed without inspection.
type SignalData struct {
	Room string          `json:"room"`
	SDP  json.RawMessage `json:"sdp"`
}

func DecodeSignal(data json.RawMessage) (SignalData, error) {
	var d SignalData
	if err := json.Unmarshal(data, &d); err != nil {
		return SignalData{}, err
	}
	if d.Room == "" {
		return SignalData{}, errors.New("signal requires room")
	}
	return d, nil
}

// DecodeStartCall parses the startCall payload, which is a bare JSON string
// holding the room id rather than an object.
func DecodeStartCall(data json.RawMessage) (string, error) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		return "", err
	}
	if roomID == "" {
		return "", errors.New("startCall requires room")
	}
	return roomID, nil
}

// FullRoomData is the fullRoom rejection payload.
type FullRoomData struct {
	Msg string `json:"msg"`
}

// MemberListData wraps a member snapshot for myRoomUserInfo. A nil snapshot
// marshals as data: null, which is what the client historically received
// for unknown rooms.
type MemberListData struct {
	Data []room.Participant `json:"data"`
}
