package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDrainerAppliesEnvDefaults(t *testing.T) {
	d := NewDrainer("localhost:0", nil, nil)
	defer d.Stop()

	assert.Equal(t, DefaultQueueName, d.queue)
	assert.Equal(t, 20, d.batchSize)
}

func TestDrainerAppendAccumulatesBelowBatchSize(t *testing.T) {
	d := NewDrainer("localhost:0", nil, nil)
	defer d.Stop()
	d.batchSize = 10

	d.append(Record{LobbyID: uuid.New(), EventType: "PlayerJoin"})
	d.append(Record{LobbyID: uuid.New(), EventType: "PlayerRemove"})

	d.batchMu.Lock()
	n := len(d.batch)
	d.batchMu.Unlock()
	require.Equal(t, 2, n, "records below batchSize must not trigger a flush")
}
