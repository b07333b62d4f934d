package realtime

import "encoding/json"

// Envelope is the wire frame for every websocket message, in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound events.
const (
	EventJoinRooms    = "join-rooms"
	EventSendMessage  = "send-message"
	EventOutgoingCall = "outgoing-call"
	EventAcceptCall   = "accept-call"
	EventRejectCall   = "reject-call"
	EventUserBusy     = "user-busy"
	EventLeaveCall    = "leave-call"
	EventICECandidate = "ice-candidate"
)

// Outbound events.
const (
	EventOnlineUsers         = "onlineUsers"
	EventReceiveMessage      = "receive-message"
	EventIncomingCall        = "incoming-call"
	EventCallAccepted        = "call-accepted"
	EventCallRejected        = "call-rejected"
	EventICECandidateReceive = "ice-candidate-receive"
)

// callPayload covers every inbound call-signaling event. "to" addresses the
// target user; offer/candidate are opaque blobs passed through to the peer.
type callPayload struct {
	To        string          `json:"to"`
	FromName  string          `json:"fromName,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// relayPayload is what the target receives. "from" always carries the true
// sender's user ID.
type relayPayload struct {
	From        string          `json:"from"`
	FromName    string          `json:"fromName,omitempty"`
	RemoteOffer json.RawMessage `json:"remoteOffer,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
}

// relayEventFor maps an inbound call-signaling event to the event name
// delivered to the target. Unknown events map to "".
func relayEventFor(event string) string {
	switch event {
	case EventOutgoingCall:
		return EventIncomingCall
	case EventAcceptCall:
		return EventCallAccepted
	case EventRejectCall:
		return EventCallRejected
	case EventUserBusy:
		return EventUserBusy
	case EventLeaveCall:
		return EventLeaveCall
	case EventICECandidate:
		return EventICECandidateReceive
	}
	return ""
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
