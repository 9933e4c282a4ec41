package registry

// EventKind names an observable registry occurrence.
type EventKind uint8

const (
	LabelSet EventKind = iota + 1
	LabelChanged
	LabelCleared
	LabelSlashed
)

func (k EventKind) String() string {
	switch k {
	case LabelSet:
		return "label_set"
	case LabelChanged:
		return "label_changed"
	case LabelCleared:
		return "label_cleared"
	case LabelSlashed:
		return "label_slashed"
	default:
		return "unknown"
	}
}

// Event is emitted exactly once per successful transition.
// Deposit is the amount reserved for LabelSet, released for LabelCleared
// and slashed for LabelSlashed. It is zero for LabelChanged.
type Event struct {
	Kind    EventKind
	Account AccountID
	Deposit Balance
}

// EventSink receives events. Delivery is fire-and-forget.
type EventSink interface {
	Emit(Event)
}

// EventBuffer collects events in emission order.
type EventBuffer struct {
	events []Event
}

func (b *EventBuffer) Emit(e Event) {
	b.events = append(b.events, e)
}

// Drain returns the buffered events and empties the buffer.
func (b *EventBuffer) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}
