package realtime

import (
	"encoding/json"
)

// Frame types of the liveness protocol.
const (
	FrameHeartbeat = "heartbeat"
	FramePing      = "ping"
	FramePong      = "pong"
	FrameAck       = "ack"
)

type inboundFrame struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type heartbeatReply struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type pongReply struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type ackReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var (
	heartbeatOK = mustMarshal(heartbeatReply{Type: FrameHeartbeat, Status: "ok"})
	ackReceived = mustMarshal(ackReply{Type: FrameAck, Message: "received"})
)

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Reply answers one client frame. Frames that are not JSON objects and
// frames without a type count as heartbeats.
func Reply(frame []byte) []byte {
	var in inboundFrame
	if err := json.Unmarshal(frame, &in); err != nil {
		return heartbeatOK
	}

	switch in.Type {
	case "", FrameHeartbeat:
		return heartbeatOK
	case FramePing:
		ts := in.Timestamp
		if len(ts) == 0 {
			ts = json.RawMessage("null")
		}
		return mustMarshal(pongReply{Type: FramePong, Timestamp: ts})
	default:
		return ackReceived
	}
}
