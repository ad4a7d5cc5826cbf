package navigation

// EventKind is the kind of a controller notification
type EventKind int

const (
	EventHostReloaded EventKind = iota
	EventDatabaseChanged
	EventViewOpened
	EventViewClosed
	EventFocusChanged
	EventRowsLoaded
)

func (k EventKind) String() string {
	switch k {
	case EventHostReloaded:
		return "host-reloaded"
	case EventDatabaseChanged:
		return "database-changed"
	case EventViewOpened:
		return "view-opened"
	case EventViewClosed:
		return "view-closed"
	case EventFocusChanged:
		return "focus-changed"
	case EventRowsLoaded:
		return "rows-loaded"
	default:
		return "unknown"
	}
}

// Event notifies the presentation layer of a state change
type Event struct {
	Kind     EventKind
	View     ViewID
	Database string
}

const eventBuffer = 64

// emit never blocks; events are dropped when nobody drains the channel, so
// receivers treat them as hints and check the view state themselves
func (c *Controller) emit(kind EventKind, view ViewID) {
	select {
	case c.events <- Event{Kind: kind, View: view, Database: c.displayed.database}:
	default:
		c.logger.Debug("event dropped", "event", kind.String())
	}
}
