package orchestrator

import "encoding/json"

// Inbound payload shapes (spec §6). Field names match the wire contract
// exactly since they round-trip straight through json.Unmarshal.

type createRoomPayload struct {
	HostID string `json:"hostId"`
	Name   string `json:"name"`
}

type validateRoomPayload struct {
	RoomID string `json:"roomId"`
}

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
}

type leaveRoomPayload struct {
	RoomID   string `json:"roomId"`
	MemberID string `json:"memberId"`
}

type offerPayload struct {
	RoomID string          `json:"roomId"`
	Offer  json.RawMessage `json:"offer"`
	To     string          `json:"to"`
}

type answerPayload struct {
	RoomID string          `json:"roomId"`
	Answer json.RawMessage `json:"answer"`
}

type iceCandidatePayload struct {
	RoomID    string          `json:"roomId"`
	Candidate json.RawMessage `json:"candidate"`
	To        string          `json:"to,omitempty"`
}

type stopSharingPayload struct {
	RoomID string `json:"roomId"`
}

type hostReadyToSharePayload struct {
	RoomID string `json:"roomId"`
}

type requestStreamPayload struct {
	RoomID string `json:"roomId"`
}

type getRouterRtpCapabilitiesPayload struct {
	RoomID string `json:"roomId"`
}

type createTransportPayload struct {
	RoomID    string `json:"roomId"`
	Direction string `json:"direction"`
}

type connectTransportPayload struct {
	RoomID         string          `json:"roomId"`
	TransportID    string          `json:"transportId"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

type producePayload struct {
	RoomID        string          `json:"roomId"`
	TransportID   string          `json:"transportId"`
	Kind          string          `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
}

type consumePayload struct {
	RoomID          string          `json:"roomId"`
	TransportID     string          `json:"transportId"`
	ProducerID      string          `json:"producerId"`
	RtpCapabilities json.RawMessage `json:"rtpCapabilities"`
}

type resumeConsumerPayload struct {
	RoomID     string `json:"roomId"`
	ConsumerID string `json:"consumerId"`
}

type getProducersPayload struct {
	RoomID string `json:"roomId"`
}

type closeProducerPayload struct {
	RoomID     string `json:"roomId"`
	ProducerID string `json:"producerId"`
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

type reactToMessagePayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type updateThemePayload struct {
	RoomID string `json:"roomId"`
	Theme  string `json:"theme"`
}

type livestreamReactionPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Emoji    string `json:"emoji"`
	UserID   string `json:"userId"`
}

type spinResultPayload struct {
	RoomID string          `json:"roomId"`
	Result json.RawMessage `json:"result"`
}
