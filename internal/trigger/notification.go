// Package trigger turns bucket notifications into pipeline runs, either
// from a RabbitMQ queue or from the HTTP intake.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/raaihank/yt-etl/internal/etl"
)

// ErrMalformedEvent is returned for notifications that cannot be parsed.
var ErrMalformedEvent = errors.New("malformed event")

// Runner executes one pipeline invocation. *etl.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, refs []etl.FileRef) *etl.RunResult
}

// Notification is an S3 (or MinIO) bucket event notification.
type Notification struct {
	Records []Record `json:"Records"`
}

// Record is one object event.
type Record struct {
	EventName string `json:"eventName,omitempty"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size,omitempty"`
		} `json:"object"`
	} `json:"s3"`
}

// ParseNotification extracts the object references of a notification, in
// record order. Object keys arrive form-encoded and are decoded with plus as
// space.
func ParseNotification(body []byte) ([]etl.FileRef, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	refs := make([]etl.FileRef, 0, len(n.Records))
	for i, r := range n.Records {
		if r.S3.Bucket.Name == "" || r.S3.Object.Key == "" {
			return nil, fmt.Errorf("%w: record %d has no bucket or key", ErrMalformedEvent, i)
		}
		refs = append(refs, etl.FileRef{
			Bucket: r.S3.Bucket.Name,
			Key:    unquoteKey(r.S3.Object.Key),
		})
	}
	return refs, nil
}

func unquoteKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		// Invalid escapes are kept literally.
		return strings.ReplaceAll(key, "+", " ")
	}
	return decoded
}
