package nats

// State is the connection state machine of spec.md §3/§4.6.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateHandshaking
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "closed"
	}
}

// Event is an observable transition, per spec.md §6's enumerated event
// list.
type Event int

const (
	EventConnected Event = iota
	EventDisconnected
	EventReconnecting
	EventReconnected
	EventClosed
	EventSubscriptionDropped
	EventHeartbeatLost
	EventConsumerTerminated
)

func (c *Conn) emit(ev Event, err error) {
	switch ev {
	case EventConnected:
		if c.opts.ConnectedCB != nil {
			c.opts.ConnectedCB(c)
		}
	case EventDisconnected:
		if c.opts.DisconnectedCB != nil {
			c.opts.DisconnectedCB(c, err)
		}
	case EventReconnecting:
		if c.opts.ReconnectingCB != nil {
			c.opts.ReconnectingCB(c)
		}
	case EventReconnected:
		if c.opts.ReconnectedCB != nil {
			c.opts.ReconnectedCB(c)
		}
	case EventClosed:
		if c.opts.ClosedCB != nil {
			c.opts.ClosedCB(c)
		}
	}
}
