package types

// Event is the rendered, string-keyed form of an event as served to API
// clients.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
