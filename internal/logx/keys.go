package logx

// attribute keys shared by every log line
const (
	Service     = "service"
	TraceID     = "trace_id"
	UserID      = "user_id"
	OrderID     = "order_id"
	Error       = "error"
	Room        = "room"
	Identity    = "identity"
	Participant = "participant"
	EventID     = "event_id"
	EventType   = "event_type"
)
