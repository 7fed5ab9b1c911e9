package wire

import (
	"fmt"
	"strings"

	"github.com/huypham612/dynastream/pkg/connector"
)

// Format names a wire encoding for normalized events.
type Format string

const (
	FormatJSON Format = "json"
)

// Codec encodes one normalized event into a wire payload.
type Codec interface {
	Name() Format
	ContentType() string
	Encode(event connector.Event) ([]byte, error)
}

// NewCodec returns a codec by name. An empty name selects JSON.
func NewCodec(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", string(FormatJSON):
		return &JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported wire format: %s", format)
	}
}
