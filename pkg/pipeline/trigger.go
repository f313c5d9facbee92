package pipeline

import (
	"net/url"
	"strings"

	"github.com/synaptica-ai/curator/pkg/common/models"
)

const s3EventSource = "aws:s3"

// CollectKeys returns the input keys named by an event: object-store
// notifications for bucket under rawPrefix first, then any keys listed
// explicitly in a manual payload. Notification keys arrive URL-encoded.
func CollectKeys(event models.TriggerEvent, bucket, rawPrefix string) []string {
	var keys []string
	for _, rec := range event.Records {
		if rec.EventSource != s3EventSource {
			continue
		}
		if rec.S3.Bucket.Name != bucket {
			continue
		}
		key := rec.S3.Object.Key
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if !strings.HasPrefix(key, rawPrefix) {
			continue
		}
		keys = append(keys, key)
	}

	for _, key := range event.Keys {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
