package converter

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/shopspring/decimal"
)

// maxDecodeDepth bounds recursive Map/List decoding. DynamoDB rejects items
// nested deeper than 32 levels, so anything past that is a malformed record,
// not data.
const maxDecodeDepth = 32

var (
	// ErrUnsupportedAttribute is returned when a record carries an attribute
	// kind the decoder does not recognize.
	ErrUnsupportedAttribute = errors.New("unsupported attribute type")

	// ErrKeyAttribute is returned when a primary-key attribute is anything
	// other than a number, binary, or string. The table schema guarantees
	// scalar keys, so this is an upstream contract violation.
	ErrKeyAttribute = errors.New("key attribute must be a number, binary, or string")

	// ErrDepthExceeded is returned when Map/List nesting goes past
	// maxDecodeDepth.
	ErrDepthExceeded = errors.New("attribute nesting exceeds maximum depth")
)

// UnsupportedAttributeError reports the concrete attribute kind that failed
// to decode.
type UnsupportedAttributeError struct {
	Kind string
}

func (e *UnsupportedAttributeError) Error() string {
	return fmt.Sprintf("unsupported attribute type %s", e.Kind)
}

func (e *UnsupportedAttributeError) Unwrap() error {
	return ErrUnsupportedAttribute
}

// KeyDecodeError reports a primary-key attribute with a non-scalar kind.
type KeyDecodeError struct {
	Name string
	Kind string
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("key attribute %s has type %s", e.Name, e.Kind)
}

func (e *KeyDecodeError) Unwrap() error {
	return ErrKeyAttribute
}

// DecodeAttribute converts one typed attribute value into its normalized
// dynamic form: numbers as exact decimals, binaries as base64 text, sets as
// slices with duplicates collapsed, lists and maps recursively decoded, NULL
// as untyped nil.
func DecodeAttribute(value types.AttributeValue) (any, error) {
	return decodeAttribute(value, 0)
}

func decodeAttribute(value types.AttributeValue, depth int) (any, error) {
	if depth > maxDecodeDepth {
		return nil, ErrDepthExceeded
	}

	switch av := value.(type) {
	case *types.AttributeValueMemberN:
		return decodeNumber(av.Value)
	case *types.AttributeValueMemberB:
		return base64.StdEncoding.EncodeToString(av.Value), nil
	case *types.AttributeValueMemberS:
		return av.Value, nil
	case *types.AttributeValueMemberBOOL:
		return av.Value, nil
	case *types.AttributeValueMemberNS:
		out := make([]decimal.Decimal, 0, len(av.Value))
		seen := make(map[string]struct{}, len(av.Value))
		for _, raw := range av.Value {
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			d, err := decodeNumber(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	case *types.AttributeValueMemberBS:
		out := make([]string, 0, len(av.Value))
		seen := make(map[string]struct{}, len(av.Value))
		for _, raw := range av.Value {
			enc := base64.StdEncoding.EncodeToString(raw)
			if _, dup := seen[enc]; dup {
				continue
			}
			seen[enc] = struct{}{}
			out = append(out, enc)
		}
		return out, nil
	case *types.AttributeValueMemberSS:
		out := make([]string, 0, len(av.Value))
		seen := make(map[string]struct{}, len(av.Value))
		for _, raw := range av.Value {
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			out = append(out, raw)
		}
		return out, nil
	case *types.AttributeValueMemberL:
		out := make([]any, 0, len(av.Value))
		for _, element := range av.Value {
			decoded, err := decodeAttribute(element, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded)
		}
		return out, nil
	case *types.AttributeValueMemberM:
		return decodeImage(av.Value, depth+1)
	case *types.AttributeValueMemberNULL:
		return nil, nil
	default:
		return nil, &UnsupportedAttributeError{Kind: attributeKind(value)}
	}
}

// DecodeImage decodes every attribute of a row image. A nil image decodes to
// an empty map; REMOVE records normally carry no new image at all.
func DecodeImage(image map[string]types.AttributeValue) (map[string]any, error) {
	return decodeImage(image, 0)
}

func decodeImage(image map[string]types.AttributeValue, depth int) (map[string]any, error) {
	out := make(map[string]any, len(image))
	for name, value := range image {
		decoded, err := decodeAttribute(value, depth)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out[name] = decoded
	}
	return out, nil
}

// DecodeKeys converts the primary-key attributes into their simplified
// scalar form: numbers keep their literal decimal string, binaries use a
// hex debug form, strings pass through.
func DecodeKeys(keys map[string]types.AttributeValue) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for name, value := range keys {
		switch av := value.(type) {
		case *types.AttributeValueMemberN:
			out[name] = av.Value
		case *types.AttributeValueMemberB:
			out[name] = fmt.Sprintf("0x%x", av.Value)
		case *types.AttributeValueMemberS:
			out[name] = av.Value
		default:
			return nil, &KeyDecodeError{Name: name, Kind: attributeKind(value)}
		}
	}
	return out, nil
}

func decodeNumber(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse number %q: %w", raw, err)
	}
	return d, nil
}

func attributeKind(value types.AttributeValue) string {
	switch value.(type) {
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	default:
		return fmt.Sprintf("%T", value)
	}
}
