package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLobbyIDFromPath(t *testing.T) {
	id := uuid.New()
	got, err := parseLobbyID("/ws/" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseLobbyIDRejectsGarbage(t *testing.T) {
	_, err := parseLobbyID("/ws/not-a-uuid")
	assert.Error(t, err)
}
