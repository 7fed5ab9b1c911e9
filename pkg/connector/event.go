package connector

import "time"

// TableInfo identifies the source table an event originated from.
type TableInfo struct {
	Name      string
	ARN       string
	StreamARN string
}

// Identity describes the originator of a change, when the stream carries one.
// TTL deletions, for example, arrive with type "Service" and principal
// "dynamodb.amazonaws.com".
type Identity struct {
	PrincipalID string
	Type        string
}

// Event is one normalized change event. Data holds the decoded row image,
// Keys the simplified primary-key attributes. Version is the tie-break
// ordering key; it is only meaningful relative to other events from the same
// shard.
type Event struct {
	Table     *TableInfo
	Operation Operation
	Keys      map[string]any
	Data      map[string]any
	EventTime time.Time
	Version   uint64
	Identity  *Identity
}
