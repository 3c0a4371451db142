package models

import "encoding/json"

// Websocket message types exchanged with a Discover session
const (
	MessageUpdateField    = "update_field"
	MessageRunQuery       = "run_query"
	MessageReset          = "reset"
	MessageOrderbyOptions = "orderby_options"
	MessageLocation       = "location"
	MessagePing           = "ping"

	MessageState        = "state"
	MessageNavigate     = "navigate"
	MessageNotification = "notification"
	MessageStatus       = "status"
	MessageSavedQueries = "saved_queries"
)

type WebSocketMessage struct {
	Type   string          `json:"type"`
	Field  string          `json:"field,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Search string          `json:"search,omitempty"`
	Data   interface{}     `json:"data,omitempty"`
}

// SessionState is pushed to the client after every change of a session
type SessionState struct {
	ViewState
	Internal QuerySpec     `json:"internal"`
	Orderby  OrderbyOption `json:"orderby"`
	Running  bool          `json:"running"`
}
