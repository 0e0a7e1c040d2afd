package domain

// EventType is the kind of change a ChangeEvent reports.
type EventType string

const (
	// EventAdded reports a record that joined the collection, or one that
	// already existed when the subscription started.
	EventAdded EventType = "added"
	// EventChanged reports a new value for an existing record.
	EventChanged EventType = "changed"
	// EventRemoved reports a record that left the collection.
	EventRemoved EventType = "removed"
	// EventMoved reports a record whose position in an ordered collection changed.
	EventMoved EventType = "moved"
)

// ChangeEvent wraps a record change delivered by a change feed.
// Value is nil for removals of records whose last value is unknown,
// and for value subscriptions on a path that holds nothing.
type ChangeEvent[T any] struct {
	Key   string    `json:"key"`
	Value *T        `json:"value"`
	Type  EventType `json:"type"`
}
