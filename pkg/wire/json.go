package wire

import (
	"encoding/json"

	"github.com/huypham612/dynastream/pkg/connector"
)

// JSONCodec encodes events as JSON envelopes. Decimals marshal as quoted
// strings, which keeps their exact digits on the wire.
type JSONCodec struct{}

type jsonIdentity struct {
	PrincipalID string `json:"principal_id"`
	Type        string `json:"type"`
}

type jsonEvent struct {
	Table           string         `json:"table"`
	TableARN        string         `json:"table_arn,omitempty"`
	Operation       string         `json:"operation"`
	Keys            map[string]any `json:"keys"`
	Data            map[string]any `json:"data"`
	EventTimeMillis int64          `json:"event_time_ms"`
	Version         uint64         `json:"version"`
	Identity        *jsonIdentity  `json:"identity,omitempty"`
}

func (c *JSONCodec) Name() Format {
	return FormatJSON
}

func (c *JSONCodec) ContentType() string {
	return "application/json"
}

func (c *JSONCodec) Encode(event connector.Event) ([]byte, error) {
	envelope := jsonEvent{
		Operation:       string(event.Operation),
		Keys:            event.Keys,
		Data:            event.Data,
		EventTimeMillis: event.EventTime.UnixMilli(),
		Version:         event.Version,
	}
	if event.Table != nil {
		envelope.Table = event.Table.Name
		envelope.TableARN = event.Table.ARN
	}
	if event.Identity != nil {
		envelope.Identity = &jsonIdentity{
			PrincipalID: event.Identity.PrincipalID,
			Type:        event.Identity.Type,
		}
	}
	return json.Marshal(envelope)
}
