package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/curator/pkg/common/models"
)

func TestNewMessageEnvelope(t *testing.T) {
	msg, event, err := newMessage("curate", "curation-service", map[string]interface{}{"key": "raw/a.csv"})
	require.NoError(t, err)

	assert.Equal(t, event.ID, string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "curate", string(msg.Headers[0].Value))

	var decoded models.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "curate", decoded.Type)
	assert.Equal(t, "curation-service", decoded.Source)
	assert.Equal(t, "raw/a.csv", decoded.Data["key"])
}

func TestNewMessageRejectsUnencodableData(t *testing.T) {
	_, _, err := newMessage("curate", "curation-service", map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}
