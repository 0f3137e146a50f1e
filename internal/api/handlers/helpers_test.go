package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyID(t *testing.T) {
	want := uuid.New()
	rec := httptest.NewRecorder()

	got, ok := bodyID(rec, "stageId", want.String())
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Zero(t, rec.Body.Len())

	for _, raw := range []string{"", "not-a-uuid", "12345678-1234-1234-1234-12345678901z"} {
		t.Run(raw, func(t *testing.T) {
			rec := httptest.NewRecorder()

			got, ok := bodyID(rec, "stageOrders[1].id", raw)
			assert.False(t, ok)
			assert.Equal(t, uuid.Nil, got)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Validation failed", resp.Error)
			assert.Equal(t, "Invalid UUID format", resp.Details["stageOrders[1].id"])
		})
	}
}
