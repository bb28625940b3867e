package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect   Action = "select"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single client message shape; unused fields stay
// at their zero value for actions that do not need them.
type RequestPayload struct {
	Action    Action `json:"action"`
	Label     string `json:"label,omitempty"`
	Direction int    `json:"direction,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventView    Event = "view"
	EventTick    Event = "tick"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
)

// TickPayload is pushed every countdown second.
type TickPayload struct {
	Event     Event  `json:"event"`
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
	Urgent    bool   `json:"urgent"`
}

// ExpiredPayload is the synchronous user notification at countdown zero.
type ExpiredPayload struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

// ViewPayload echoes the refreshed render state after an action.
type ViewPayload struct {
	Event Event       `json:"event"`
	View  interface{} `json:"view"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
