package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/logging"
	"presence/pkg/projector"
	"presence/pkg/statusync"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestViewRouter(t *testing.T) {
	t.Parallel()

	store := &viewStore{}
	h := newViewRouter(store, logging.Discard())

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = get(t, h, "/view")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = get(t, h, "/state")
	require.Equal(t, http.StatusOK, rec.Code)
	var st stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, statusync.StateIdle, st.State)

	store.setFrame(sampleView())
	store.setState(statusync.StateChange{State: statusync.StateDegraded, Err: errors.New("edge platform")})

	rec = get(t, h, "/view")
	require.Equal(t, http.StatusOK, rec.Code)
	var vr viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))
	require.NotNil(t, vr.View)
	assert.Equal(t, "Awake", vr.View.Status.Name)

	rec = get(t, h, "/state")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, statusync.StateDegraded, st.State)
	assert.Equal(t, "edge platform", st.Error)
	assert.Equal(t, 1, st.Frames)

	store.setFrame(projector.ErrorView{Message: "bad payload"})
	rec = get(t, h, "/view")
	vr = viewResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))
	assert.Nil(t, vr.View)
	assert.Equal(t, "bad payload", vr.Error)

	rec = get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
