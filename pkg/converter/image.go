package converter

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

// selectImage picks which row image a record should be decoded from. REMOVE
// events normally carry no new image; consumers who need the pre-delete
// state opt into the old-image view. Streams configured without old images
// degrade to the (empty) new image, reported through fellBack so the caller
// can log it without failing the record.
func selectImage(record types.Record, viewOnRemove types.StreamViewType) (image map[string]types.AttributeValue, fellBack bool) {
	if record.EventName != types.OperationTypeRemove {
		return record.Dynamodb.NewImage, false
	}

	if viewOnRemove == types.StreamViewTypeOldImage {
		if len(record.Dynamodb.OldImage) == 0 {
			return record.Dynamodb.NewImage, true
		}
		return record.Dynamodb.OldImage, false
	}

	return record.Dynamodb.NewImage, false
}
