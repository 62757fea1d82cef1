package session

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/GamjaUnni/nicecatch-backend/internal/events"
	"github.com/GamjaUnni/nicecatch-backend/internal/relay"
	"github.com/GamjaUnni/nicecatch-backend/internal/room"
)

// fakeEmitter resolves room-scoped broadcast from its own tag map, the same
// contract the websocket hub provides, and records every delivered frame
// per connection.
type fakeEmitter struct {
	tags      map[string]map[string]bool // roomID -> connID set
	delivered map[string][]events.Envelope
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{
		tags:      make(map[string]map[string]bool),
		delivered: make(map[string][]events.Envelope),
	}
}

func (f *fakeEmitter) Tag(connID, roomID string) {
	if f.tags[roomID] == nil {
		f.tags[roomID] = make(map[string]bool)
	}
	f.tags[roomID][connID] = true
}

func (f *fakeEmitter) Unicast(connID string, frame []byte) {
	var env events.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic("fakeEmitter: non-JSON frame: " + err.Error())
	}
	f.delivered[connID] = append(f.delivered[connID], env)
}

func (f *fakeEmitter) BroadcastExcept(roomID, senderID string, frame []byte) {
	for connID := range f.tags[roomID] {
		if connID != senderID {
			f.Unicast(connID, frame)
		}
	}
}

type fixture struct {
	registry *room.Registry
	emitter  *fakeEmitter
	dispatch *relay.Dispatcher
}

func newFixture(roomSize int) *fixture {
	em := newFakeEmitter()
	log := zap.NewNop().Sugar()
	return &fixture{
		registry: room.NewRegistry(roomSize),
		emitter:  em,
		dispatch: relay.NewDispatcher(em, log),
	}
}

func (fx *fixture) session(connID string) *Session {
	return New(connID, fx.registry, fx.dispatch, zap.NewNop().Sugar())
}

func (fx *fixture) join(t *testing.T, s *Session, username, roomID string) {
	t.Helper()
	fx.handle(t, s, events.JoinRoom, `{"username":"`+username+`","room":"`+roomID+`"}`)
}

func (fx *fixture) handle(t *testing.T, s *Session, kind events.Kind, data string) {
	t.Helper()
	env := events.Envelope{Event: kind}
	if data != "" {
		env.Data = json.RawMessage(data)
	}
	s.Handle(env)
}

func lastEvent(t *testing.T, fx *fixture, connID string) events.Envelope {
	t.Helper()
	got := fx.emitter.delivered[connID]
	if len(got) == 0 {
		t.Fatalf("no events delivered to %s", connID)
	}
	return got[len(got)-1]
}

func TestFirstJoinGetsInitAck(t *testing.T) {
	fx := newFixture(8)
	a := fx.session("A")
	fx.join(t, a, "yuna", "r1")

	env := lastEvent(t, fx, "A")
	if env.Event != events.VideoChatConnectInit {
		t.Fatalf("event=%q, want %q", env.Event, events.VideoChatConnectInit)
	}
	if string(env.Data) != `{"username":"yuna","room":"r1"}` {
		t.Fatalf("ack payload=%s, want the original join payload", env.Data)
	}
	if a.State() != Joined || a.Room() != "r1" {
		t.Fatalf("state=%v room=%q after join", a.State(), a.Room())
	}
}

func TestSecondJoinGetsConnectAckAndPeerSeesNothing(t *testing.T) {
	fx := newFixture(8)
	a := fx.session("A")
	b := fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	env := lastEvent(t, fx, "B")
	if env.Event != events.VideoChatConnect {
		t.Fatalf("event=%q, want %q", env.Event, events.VideoChatConnect)
	}
	// A's only traffic is its own join ack; B's join is silent for A.
	if got := fx.emitter.delivered["A"]; len(got) != 1 {
		t.Fatalf("A received %d events, want 1 (own ack only): %+v", len(got), got)
	}
}

func TestFullRoomRejectionLeavesSessionUnjoined(t *testing.T) {
	const size = 2
	fx := newFixture(size)
	for i, id := range []string{"A", "B", "C"} {
		s := fx.session(id)
		fx.join(t, s, "u", "r1")
		if s.State() != Joined {
			t.Fatalf("join %d should succeed under the historical check", i)
		}
	}

	late := fx.session("D")
	fx.join(t, late, "late", "r1")

	env := lastEvent(t, fx, "D")
	if env.Event != events.FullRoom {
		t.Fatalf("event=%q, want %q", env.Event, events.FullRoom)
	}
	if string(env.Data) != `{"msg":"full"}` {
		t.Fatalf("payload=%s, want {\"msg\":\"full\"}", env.Data)
	}
	if late.State() != Unjoined {
		t.Fatalf("rejected session state=%v, want Unjoined", late.State())
	}
	// A rejected connection must not be tagged into the room channel.
	if fx.emitter.tags["r1"]["D"] {
		t.Fatal("rejected connection was tagged to the room")
	}
}

func TestJoinWhileJoinedIsIgnored(t *testing.T) {
	fx := newFixture(8)
	a := fx.session("A")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, a, "yuna", "r2")

	if a.Room() != "r1" {
		t.Fatalf("room=%q after second join, want r1", a.Room())
	}
	if count, _ := fx.registry.Lookup("r2"); count != 0 {
		t.Fatal("second join mutated the registry")
	}
}

func TestSendMessageReachesRoomExceptSender(t *testing.T) {
	fx := newFixture(8)
	a, b, c := fx.session("A"), fx.session("B"), fx.session("C")
	fx.join(t, a, "a", "r1")
	fx.join(t, b, "b", "r1")
	fx.join(t, c, "c", "r2")

	before := len(fx.emitter.delivered["A"])
	fx.handle(t, a, events.SendMessage, `{"room":"r1","message":"hi","author":"a"}`)

	env := lastEvent(t, fx, "B")
	if env.Event != events.ReceiveMessage {
		t.Fatalf("event=%q, want %q", env.Event, events.ReceiveMessage)
	}
	if string(env.Data) != `{"room":"r1","message":"hi","author":"a"}` {
		t.Fatalf("payload=%s, want full inbound payload", env.Data)
	}
	if len(fx.emitter.delivered["A"]) != before {
		t.Fatal("sender received its own message")
	}
	if len(fx.emitter.delivered["C"]) != 1 {
		t.Fatal("message leaked into a different room")
	}
}

func TestRoomInfoSnapshotMatchesJoinOrder(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	fx.handle(t, a, events.MyRoomInfo, `{"room":"r1"}`)

	env := lastEvent(t, fx, "A")
	if env.Event != events.MyRoomUserInfo {
		t.Fatalf("event=%q, want %q", env.Event, events.MyRoomUserInfo)
	}
	want := `{"data":[{"username":"yuna","id":"A","win":0},{"username":"mina","id":"B","win":0}]}`
	if string(env.Data) != want {
		t.Fatalf("payload=%s\nwant   =%s", env.Data, want)
	}
}

func TestRoomInfoUnknownRoomIsNull(t *testing.T) {
	fx := newFixture(8)
	a := fx.session("A")
	fx.handle(t, a, events.MyRoomInfo, `{"room":"nope"}`)

	env := lastEvent(t, fx, "A")
	if string(env.Data) != `{"data":null}` {
		t.Fatalf("payload=%s, want {\"data\":null}", env.Data)
	}
}

func TestStartCallBroadcastsSnapshotThenSignal(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	fx.handle(t, a, events.StartCall, `"r1"`)

	got := fx.emitter.delivered["B"]
	if len(got) != 3 { // own ack + snapshot + startCall
		t.Fatalf("B received %d events, want 3: %+v", len(got), got)
	}
	if got[1].Event != events.MyRoomUserInfo {
		t.Fatalf("first broadcast=%q, want %q", got[1].Event, events.MyRoomUserInfo)
	}
	if got[2].Event != events.StartCall {
		t.Fatalf("second broadcast=%q, want %q", got[2].Event, events.StartCall)
	}
	if len(got[2].Data) != 0 {
		t.Fatalf("startCall payload=%s, want none", got[2].Data)
	}
	// The caller gets neither.
	if len(fx.emitter.delivered["A"]) != 1 {
		t.Fatal("caller received its own startCall broadcast")
	}
}

func TestOfferRelaysSDPOnly(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	fx.handle(t, b, events.WebRTCOffer, `{"room":"r1","sdp":"X"}`)

	env := lastEvent(t, fx, "A")
	if env.Event != events.WebRTCOffer {
		t.Fatalf("event=%q, want %q", env.Event, events.WebRTCOffer)
	}
	if string(env.Data) != `"X"` {
		t.Fatalf("payload=%s, want the bare sdp blob", env.Data)
	}
	if len(fx.emitter.delivered["B"]) != 1 {
		t.Fatal("offer echoed back to its sender")
	}
}

func TestAnswerRelaysSDPOnly(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	fx.handle(t, a, events.WebRTCAnswer, `{"room":"r1","sdp":{"type":"answer","sdp":"v=0"}}`)

	env := lastEvent(t, fx, "B")
	if env.Event != events.WebRTCAnswer {
		t.Fatalf("event=%q, want %q", env.Event, events.WebRTCAnswer)
	}
	if string(env.Data) != `{"type":"answer","sdp":"v=0"}` {
		t.Fatalf("payload=%s", env.Data)
	}
}

func TestCandidateRelaysWholePayload(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	in := `{"room":"r1","candidate":"cand","sdpMid":"0","sdpMLineIndex":0}`
	fx.handle(t, a, events.WebRTCCandidate, in)

	env := lastEvent(t, fx, "B")
	if env.Event != events.WebRTCCandidate {
		t.Fatalf("event=%q, want %q", env.Event, events.WebRTCCandidate)
	}
	if string(env.Data) != in {
		t.Fatalf("payload=%s, want the entire inbound payload", env.Data)
	}
}

func TestMalformedPayloadIsDroppedSilently(t *testing.T) {
	fx := newFixture(8)
	a := fx.session("A")
	fx.join(t, a, "yuna", "r1")

	cases := []struct {
		kind events.Kind
		data string
	}{
		{events.JoinRoom, `{"username":"x"}`},
		{events.SendMessage, `{}`},
		{events.MyRoomInfo, `[1,2]`},
		{events.StartCall, `42`},
		{events.WebRTCOffer, `{"sdp":"X"}`},
		{events.WebRTCCandidate, `{}`},
	}
	before := len(fx.emitter.delivered["A"])
	for _, c := range cases {
		fx.handle(t, a, c.kind, c.data)
	}
	if len(fx.emitter.delivered["A"]) != before {
		t.Fatal("malformed payload produced outbound traffic")
	}
	if a.State() != Joined {
		t.Fatalf("state=%v after malformed events, want Joined", a.State())
	}
}

func TestDisconnectRemovesMembershipOnce(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")
	fx.join(t, a, "yuna", "r1")
	fx.join(t, b, "mina", "r1")

	a.Disconnect()
	if a.State() != Closed {
		t.Fatalf("state=%v, want Closed", a.State())
	}
	// Idempotent.
	a.Disconnect()

	fx.handle(t, b, events.MyRoomInfo, `{"room":"r1"}`)
	env := lastEvent(t, fx, "B")
	want := `{"data":[{"username":"mina","id":"B","win":0}]}`
	if string(env.Data) != want {
		t.Fatalf("snapshot after disconnect=%s\nwant=%s", env.Data, want)
	}
}

func TestDisconnectWithoutJoinIsNoop(t *testing.T) {
	fx := newFixture(8)
	s := fx.session("ghost")
	s.Disconnect()
	if s.State() != Closed {
		t.Fatalf("state=%v, want Closed", s.State())
	}
}

func TestClosedSessionIgnoresEvents(t *testing.T) {
	fx := newFixture(8)
	a := fx.session("A")
	fx.join(t, a, "yuna", "r1")
	a.Disconnect()

	before := len(fx.emitter.delivered["A"])
	fx.handle(t, a, events.MyRoomInfo, `{"room":"r1"}`)
	if len(fx.emitter.delivered["A"]) != before {
		t.Fatal("closed session still produced traffic")
	}
}

// The end-to-end scenario from the room migration notes: join, signal,
// disconnect, snapshot.
func TestTwoClientScenario(t *testing.T) {
	fx := newFixture(8)
	a, b := fx.session("A"), fx.session("B")

	fx.join(t, a, "yuna", "r1")
	if lastEvent(t, fx, "A").Event != events.VideoChatConnectInit {
		t.Fatal("A should get the init ack")
	}

	fx.join(t, b, "mina", "r1")
	if lastEvent(t, fx, "B").Event != events.VideoChatConnect {
		t.Fatal("B should get the connect ack")
	}
	if len(fx.emitter.delivered["A"]) != 1 {
		t.Fatal("A saw traffic from B's join")
	}

	fx.handle(t, b, events.WebRTCOffer, `{"room":"r1","sdp":"X"}`)
	env := lastEvent(t, fx, "A")
	if env.Event != events.WebRTCOffer || string(env.Data) != `"X"` {
		t.Fatalf("A got %q %s, want webrtcOffer \"X\"", env.Event, env.Data)
	}
	if len(fx.emitter.delivered["B"]) != 1 {
		t.Fatal("B received its own offer")
	}

	a.Disconnect()
	fx.handle(t, b, events.MyRoomInfo, `{"room":"r1"}`)
	want := `{"data":[{"username":"mina","id":"B","win":0}]}`
	if got := lastEvent(t, fx, "B"); string(got.Data) != want {
		t.Fatalf("snapshot=%s, want %s", got.Data, want)
	}
}
