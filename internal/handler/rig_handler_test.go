// internal/handler/rig_handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rig-service/internal/protocol"
	"rig-service/internal/rig"
	"rig-service/internal/service"
	"rig-service/pkg/rigtypes"
)

func newRigRouter(t *testing.T) (*gin.Engine, *rig.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pair := protocol.NewEmulatedPair(rigtypes.MachineTwoPlus, 23, zap.NewNop())
	ctrl, err := rig.Connect(context.Background(), pair, rig.Options{
		ConfirmTimeout:   200 * time.Millisecond,
		RelayPollPeriod:  5 * time.Millisecond,
		AnalogPollPeriod: 5 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Close(context.Background()) })

	router := gin.New()
	h := NewRigHandler(service.NewRigService(ctrl, zap.NewNop()), zap.NewNop())
	h.RegisterRoutes(router.Group("/api/v1/rig"))
	return router, ctrl
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return w, parsed
}

func TestGetStatusEndpoint(t *testing.T) {
	router, _ := newRigRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/api/v1/rig/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	identity := data["identity"].(map[string]any)
	assert.Equal(t, "r2+", identity["machine_type"])
	assert.Equal(t, float64(23), identity["firmware_version"])
	assert.Equal(t, []any{float64(0), float64(0), float64(0), float64(0)}, data["flex_types"])
}

func TestConfigureFlexEndpoint(t *testing.T) {
	router, _ := newRigRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/rig/flex",
		gin.H{"types": []int{2, 0, 2, 1}})
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	inputs := data["input_channel_names"].([]any)
	assert.Contains(t, inputs, "Flex1")
	assert.Contains(t, inputs, "Flex3")
}

func TestConfigureFlexEndpointRejectsWrongLength(t *testing.T) {
	router, _ := newRigRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/rig/flex",
		gin.H{"types": []int{0, 0}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestSamplingRateEndpoint(t *testing.T) {
	router, _ := newRigRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/rig/sampling-rate",
		gin.H{"rate_hz": 1000})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/rig/sampling-rate",
		gin.H{"rate_hz": 2000})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelayEndpoints(t *testing.T) {
	router, ctrl := newRigRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/rig/modules/relay/start",
		gin.H{"module": "AnalogIn1"})
	require.Equal(t, http.StatusOK, w.Code)

	// Second relay while one is active conflicts
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/rig/modules/relay/start",
		gin.H{"module": "Serial2"})
	require.Equal(t, http.StatusConflict, w.Code)

	// Enumeration shares the command channel
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/rig/modules/refresh", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/rig/modules/relay/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", ctrl.Relay.Relaying())
}

func TestRelayUnknownModuleEndpoint(t *testing.T) {
	router, _ := newRigRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/rig/modules/relay/start",
		gin.H{"module": "NoSuchModule"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusLEDEndpoint(t *testing.T) {
	router, _ := newRigRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/rig/status-led", gin.H{"on": true})
	require.Equal(t, http.StatusOK, w.Code)
}
