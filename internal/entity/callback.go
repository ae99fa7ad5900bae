package entity

// CallbackEventType names what happened to an asynchronous generation.
type CallbackEventType string

const (
	CallbackEventTypeProposalCreated CallbackEventType = "proposalCreated"
	CallbackEventTypeError           CallbackEventType = "error"
)

// CallbackTarget says where and on whose behalf an event is delivered.
type CallbackTarget struct {
	URL       string
	RequestID string
	SessionID string
	Format    ProposalFormat
}

// CallbackEvent is the body posted to a callback URL.
type CallbackEvent struct {
	Event     CallbackEventType `json:"event"`
	RequestID string            `json:"request_id"`
	SessionID string            `json:"session_id"`
	Timestamp string            `json:"timestamp"` // RFC 3339, UTC
	Data      any               `json:"data"`
}

// CallbackErrorData is the payload of an error event.
type CallbackErrorData struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Format  ProposalFormat `json:"format,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
