package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/gate/catalog"
	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGate = `X=obsidian
-=obsidian
owner=test

XXXX
X..X
-..-
X*.X
XXXX
`

type apiEnv struct {
	server  *RestServer
	builder *portal.Builder
	gate    *portal.Portal
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := block.NewDefaultRegistry()
	f, err := gate.ParseString("nether", testGate, registry)
	require.NoError(t, err)
	cat := catalog.New()
	require.NoError(t, cat.Add(f))

	w := world.New(registry, world.DefaultMinY, world.DefaultMaxY)
	origin := vec.New(0, 64, 0)
	tr := gate.NewTransform(gate.East, false)
	for _, c := range f.Cells() {
		id := block.ObsidianBlockID
		if c.Role == gate.RoleIris {
			id = block.AirBlockID
		}
		require.NoError(t, w.SetBlock(origin.Add(tr.ToWorld(c.Vec)), id))
	}

	builder := portal.NewBuilder(w, cat, portal.Options{})
	p, err := builder.Build(context.Background(), origin.Add(tr.ToWorld(f.ControlCells()[0])), gate.East)
	require.NoError(t, err)

	server := NewRestServer(Config{
		Formats:   cat,
		Gates:     builder,
		Materials: registry,
		Registry:  prometheus.NewRegistry(),
	})
	return &apiEnv{server: server, builder: builder, gate: p}
}

func (env *apiEnv) get(t *testing.T, path string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	var resp GenericResponse
	if strings.HasPrefix(path, "/api/") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func decodeData(t *testing.T, resp GenericResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	rec, _ := env.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["formats"])
	assert.EqualValues(t, 1, body["gates"])
}

func TestFormatsEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec, resp := env.get(t, "/api/formats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	var list []FormatView
	decodeData(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "nether", list[0].Name)
	assert.Equal(t, 6, list[0].IrisCells)
	assert.Equal(t, 2, list[0].ControlCells)
	assert.Equal(t, []string{"obsidian"}, list[0].ControlMaterials)
	assert.Equal(t, "test", list[0].Metadata["owner"])
	assert.Empty(t, list[0].Text, "текст только в детальном ответе")

	rec, resp = env.get(t, "/api/formats/nether")
	require.Equal(t, http.StatusOK, rec.Code)
	var one FormatView
	decodeData(t, resp, &one)
	assert.Contains(t, one.Text, "X*.X")

	rec, resp = env.get(t, "/api/formats/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestGatesEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec, resp := env.get(t, "/api/gates")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []GateView
	decodeData(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, env.gate.ID, list[0].ID)
	assert.Equal(t, gate.East, list[0].Facing)
	assert.Equal(t, 6, list[0].Cells["iris"])
	require.NotNil(t, list[0].Sign)

	rec, resp = env.get(t, "/api/gates/"+env.gate.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var one GateView
	decodeData(t, resp, &one)
	assert.Equal(t, env.gate.Instance.Exit(), one.Exit)

	rec, _ = env.get(t, "/api/gates/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Переключение врат из горутины симуляции не должно гоняться с чтением
// списка врат обработчиками gin (проверяется под -race).
func TestGatesEndpointDuringTransitions(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				assert.NoError(t, env.builder.Open(ctx, env.gate.ID))
			} else {
				assert.NoError(t, env.builder.Close(ctx, env.gate.ID))
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/gates", nil)
			rec := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	}()
	wg.Wait()

	// 200 переключений: последним было закрытие
	_, resp := env.get(t, "/api/gates/"+env.gate.ID)
	var one GateView
	decodeData(t, resp, &one)
	assert.False(t, one.Open)
}

func TestLookupEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	exit := env.gate.Instance.Exit()

	path := fmt.Sprintf("/api/lookup?x=%d&y=%d&z=%d", exit.X, exit.Y, exit.Z)
	rec, resp := env.get(t, path)
	require.Equal(t, http.StatusOK, rec.Code)
	var view LookupView
	decodeData(t, resp, &view)
	assert.Equal(t, "iris", view.Role)
	assert.Equal(t, env.gate.ID, view.Gate.ID)

	// Поверхность не относится к рамке
	rec, _ = env.get(t, path+"&role=frame")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.get(t, path+"&role=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.get(t, "/api/lookup?x=1&y=abc&z=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.get(t, "/api/lookup?x=1&z=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjacentEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	front := env.gate.Instance.Exit().Add(gate.East.Forward())

	rec, resp := env.get(t, fmt.Sprintf("/api/adjacent?x=%d&y=%d&z=%d", front.X, front.Y, front.Z))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []GateView
	decodeData(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, env.gate.ID, list[0].ID)

	rec, resp = env.get(t, "/api/adjacent?x=100&y=64&z=100&role=iris")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &list)
	assert.Empty(t, list)
}

func TestStatsAndMetrics(t *testing.T) {
	env := newAPIEnv(t)

	rec, resp := env.get(t, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Process ProcessStats   `json:"process"`
		Gates   int            `json:"gates"`
		Index   map[string]int `json:"index"`
	}
	decodeData(t, resp, &stats)
	assert.Equal(t, 1, stats.Gates)
	assert.Equal(t, 6, stats.Index["iris"])
	assert.Positive(t, stats.Process.Goroutines)

	rec, _ = env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gates_api_http_request_duration_seconds")
}

func TestFormatUptime(t *testing.T) {
	cases := map[string]string{
		"5s":      "5с",
		"90s":     "1м 30с",
		"2h3m4s":  "2ч 3м 4с",
		"49h0m1s": "2д 1ч 0м 1с",
	}
	for in, want := range cases {
		d, err := time.ParseDuration(in)
		require.NoError(t, err)
		if got := FormatUptime(d); got != want {
			t.Errorf("FormatUptime(%s) = %q, ожидалось %q", in, got, want)
		}
	}
}
