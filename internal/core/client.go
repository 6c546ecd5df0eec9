package core

// Client is a connected socket as seen by the core layer.
// room is owned by the hub goroutine.
type Client struct {
	ID     string
	Events chan *Event

	room *Room
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 32),
	}
}

// send delivers without blocking; a full buffer drops the event.
func (c *Client) send(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
