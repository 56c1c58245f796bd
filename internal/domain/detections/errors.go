package detections

import "errors"

var (
	// ErrUnrecognizedTag: tag token is not in the CategoryMap. Not a failure, the asset is just excluded.
	ErrUnrecognizedTag = errors.New("unrecognized tag")

	// ErrMalformedTimestamp indicates created_at could not be parsed as ISO 8601.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrRemoteQuery indicates the asset source query failed or timed out.
	ErrRemoteQuery = errors.New("remote asset query failed")
)
