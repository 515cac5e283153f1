package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiojoin-manager/internal/config"
	"audiojoin-manager/internal/manager"
	"audiojoin-manager/internal/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *manager.SessionManager) {
	t.Helper()

	cfg := config.DefaultConfig()
	m := manager.NewSessionManager(cfg)
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Stop() })

	router := SetupRouter(cfg, m)
	gin.SetMode(gin.TestMode)
	return router, m
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func createTestSession(t *testing.T, router http.Handler, cfg map[string]interface{}) models.Session {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/sessions", cfg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session models.Session
	decode(t, w, &session)
	return session
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/sessions", map[string]interface{}{"user_name": "ana"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	session := createTestSession(t, router, map[string]interface{}{
		"meeting_id": "meeting-1",
		"user_name":  "ana",
	})
	assert.Regexp(t, `^session_[0-9a-f]{8}$`, session.ID)
	assert.Equal(t, models.SessionStatusCreated, session.Status)
	assert.Equal(t, "en", session.Locale)

	w = doJSON(t, router, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []models.Session
	decode(t, w, &sessions)
	assert.Len(t, sessions, 1)

	w = doJSON(t, router, http.MethodGet, "/sessions/session_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestMountAndResolvePrompt(t *testing.T) {
	router, _ := newTestRouter(t)
	session := createTestSession(t, router, map[string]interface{}{"meeting_id": "meeting-1"})

	w := doJSON(t, router, http.MethodPost, "/sessions/"+session.ID+"/mount", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var mount struct {
		Plan struct {
			Join  string `json:"join"`
			Latch string `json:"latch"`
		} `json:"plan"`
		AutoJoin string         `json:"auto_join"`
		Session  models.Session `json:"session"`
	}
	decode(t, w, &mount)
	assert.Equal(t, "open_audio_prompt", mount.Plan.Join)
	assert.Equal(t, "now", mount.Plan.Latch)
	assert.Equal(t, "none", mount.AutoJoin)
	require.Len(t, mount.Session.OpenPrompts, 1)

	promptID := mount.Session.OpenPrompts[0].ID
	resolvePath := "/sessions/" + session.ID + "/prompts/" + promptID + "/resolve"

	w = doJSON(t, router, http.MethodPost, resolvePath, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, resolvePath, map[string]string{"choice": "shared"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, resolvePath, map[string]string{"choice": "listen_only"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, resolvePath, map[string]string{"choice": "listen_only"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/sessions/"+session.ID+"/prompts/prompt_missing/resolve", map[string]string{"choice": "dismissed"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Eventually(t, func() bool {
		w := doJSON(t, router, http.MethodGet, "/sessions/"+session.ID+"/audio", nil)
		var state models.AudioState
		if json.Unmarshal(w.Body.Bytes(), &state) != nil {
			return false
		}
		return state.IsConnected() && state.Mode == models.AudioModeListenOnly
	}, 2*time.Second, 10*time.Millisecond)

	w = doJSON(t, router, http.MethodGet, "/sessions/"+session.ID+"/decisions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var decisions struct {
		Decisions []models.DecisionRecord `json:"decisions"`
	}
	decode(t, w, &decisions)
	assert.Len(t, decisions.Decisions, 2)

	w = doJSON(t, router, http.MethodPost, "/sessions/"+session.ID+"/audio/leave", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodPost, "/sessions/"+session.ID+"/audio/leave", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/sessions/"+session.ID+"/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LEFT_AUDIO")
}

func TestUpdateLocksAndSettings(t *testing.T) {
	router, _ := newTestRouter(t)
	session := createTestSession(t, router, map[string]interface{}{"meeting_id": "meeting-1"})

	w := doJSON(t, router, http.MethodPut, "/sessions/"+session.ID+"/locks", map[string]bool{"user_mic": true, "user_webcam": true})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Session
	decode(t, w, &updated)
	assert.True(t, updated.Locks.Microphone)
	assert.True(t, updated.Locks.Webcam)

	w = doJSON(t, router, http.MethodPut, "/sessions/"+session.ID+"/settings", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/sessions/"+session.ID+"/settings", map[string]interface{}{
		"user_settings": map[string]interface{}{"bbb_auto_join_audio": "false"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/sessions/"+session.ID+"/mount", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rule":"mount.skip"`)

	w = doJSON(t, router, http.MethodPut, "/sessions/session_missing/locks", map[string]bool{"user_mic": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBreakoutRoutes(t *testing.T) {
	router, _ := newTestRouter(t)
	session := createTestSession(t, router, map[string]interface{}{"meeting_id": "meeting-1"})

	w := doJSON(t, router, http.MethodPost, "/meetings/meeting-1/breakouts", map[string]string{"id": "room-1", "name": "Room 1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		w := doJSON(t, router, http.MethodGet, "/sessions/"+session.ID, nil)
		var s models.Session
		return json.Unmarshal(w.Body.Bytes(), &s) == nil && s.HasBreakoutRooms
	}, 2*time.Second, 10*time.Millisecond)

	w = doJSON(t, router, http.MethodGet, "/meetings/meeting-1/breakouts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "room-1")

	w = doJSON(t, router, http.MethodDelete, "/meetings/meeting-1/breakouts/room-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/meetings/meeting-1/breakouts/room-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPut, "/meetings/meeting-1/breakouts", map[string]interface{}{
		"rooms": []map[string]string{{"id": "a"}, {"id": "b"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var set struct {
		Rooms []models.BreakoutRoom `json:"rooms"`
	}
	decode(t, w, &set)
	assert.Len(t, set.Rooms, 2)

	w = doJSON(t, router, http.MethodGet, "/meetings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), session.ID)
}

func TestDecide(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/decide", map[string]interface{}{
		"auto_join_enabled":         true,
		"user_selected_microphone":  true,
		"user_selected_listen_only": true,
		"meeting_is_breakout":       false,
		"had_breakout_rooms":        true,
		"has_breakout_rooms":        false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result manager.Evaluation
	decode(t, w, &result)
	assert.Equal(t, "open_audio_prompt", result.Mount.Join.String())
	assert.True(t, result.IsBreakoutReturn)
	assert.Equal(t, "join_microphone", result.SilentJoin.String())
	assert.Equal(t, "breakout_return.already_joined", result.BreakoutReturn.Rule)

	w = doJSON(t, router, http.MethodPost, "/decide", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSessionAndStats(t *testing.T) {
	router, _ := newTestRouter(t)
	session := createTestSession(t, router, map[string]interface{}{"meeting_id": "meeting-1"})

	w := doJSON(t, router, http.MethodGet, "/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.UsageStats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.TotalSessions)

	w = doJSON(t, router, http.MethodGet, "/ws/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions_monitored":1`)

	w = doJSON(t, router, http.MethodDelete, "/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/ws/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoppedManagerIsUnavailable(t *testing.T) {
	router, m := newTestRouter(t)
	require.NoError(t, m.Stop())

	w := doJSON(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, router, http.MethodPost, "/sessions", map[string]string{"meeting_id": "meeting-1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
