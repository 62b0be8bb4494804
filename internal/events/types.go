package events

// RelayStatusEvent signals the collector relay attaching to or detaching
// from the hub.
type RelayStatusEvent struct {
	Connected bool   `json:"connected"`
	Remote    string `json:"remote,omitempty"`
}
