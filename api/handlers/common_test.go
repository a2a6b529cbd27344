package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/skillstream/types"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrParams, http.StatusBadRequest},
		{types.ErrModelNotSupported, http.StatusBadRequest},
		{types.ErrSkillNotFound, http.StatusNotFound},
		{types.ErrResultNotFound, http.StatusNotFound},
		{types.ErrTriggerNotFound, http.StatusNotFound},
		{types.ErrUserNotFound, http.StatusNotFound},
		{types.ErrDuplicateRequest, http.StatusConflict},
		{types.ErrQuotaExceeded, http.StatusTooManyRequests},
		{types.ErrAborted, 499},
		{types.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, types.NewError(tc.code, "boom"), zap.NewNop())

			require.Equal(t, tc.status, rec.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tc.code), resp.Error.Code)
		})
	}
}

func TestWriteErrorExplicitStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, types.NewError(types.ErrParams, "gone").WithHTTPStatus(http.StatusGone), zap.NewNop())
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestWriteErrorWrapsPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("disk on fire"), zap.NewNop())

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	// the caller's error text stays out of the response body
	assert.NotContains(t, resp.Error.Message, "disk on fire")
}

func TestResponseWriterExposesFlusher(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	var w http.ResponseWriter = rw
	_, ok := w.(http.Flusher)
	assert.True(t, ok, "wrapped writer must still expose Flush for SSE")
}
