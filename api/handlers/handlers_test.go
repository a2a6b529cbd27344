package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/skillstream/internal/metrics"
	"github.com/BaSui01/skillstream/model"
	"github.com/BaSui01/skillstream/queue"
	"github.com/BaSui01/skillstream/skill"
	"github.com/BaSui01/skillstream/store"
	"github.com/BaSui01/skillstream/types"
)

var handlerMetricsSeq uint64

func nextHandlerMetricsNamespace() string {
	return fmt.Sprintf("handlertest_%d", atomic.AddUint64(&handlerMetricsSeq, 1))
}

// echoSkill streams the query back as one chunk and finishes with it.
type echoSkill struct{}

func (echoSkill) Name() string        { return "echo" }
func (echoSkill) Description() string { return "echoes the query back" }

func (echoSkill) Invoke(_ context.Context, in *types.SkillInput, _ *skill.InvokeConfig) (<-chan types.ExecutionEvent, error) {
	ch := make(chan types.ExecutionEvent, 2)
	ch <- types.ExecutionEvent{Type: types.ExecChunk, Content: in.Query}
	ch <- types.ExecutionEvent{Type: types.ExecEnd, Content: in.Query}
	close(ch)
	return ch, nil
}

// wordEstimator makes estimated token counts predictable in tests.
type wordEstimator struct{}

func (wordEstimator) Estimate(text string) int { return len(strings.Fields(text)) }

type denyAllQuota struct{}

func (denyAllQuota) Allow(context.Context, string, string) bool { return false }

type handlerEnv struct {
	store *store.Store
	queue *queue.Queue
	svc   *skill.Service
	mux   *http.ServeMux
}

func newHandlerEnv(t *testing.T, quota model.QuotaChecker, skills ...skill.Skill) *handlerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	st, err := store.New(db, zap.NewNop())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.New(client, "test:", zap.NewNop())

	registry := model.NewRegistry("gpt-4o", []model.Info{
		{Name: "gpt-4o", Provider: "openai", Tier: "t1", ContextWindow: 128000},
		{Name: "gpt-4o-mini", Provider: "openai", Tier: "t2", ContextWindow: 128000},
	})

	if len(skills) == 0 {
		skills = []skill.Skill{echoSkill{}}
	}
	svc := skill.NewService(skill.Deps{
		Store:     st,
		Queue:     q,
		Registry:  registry,
		Quota:     quota,
		Inventory: skill.NewInventory("", skills...),
		Metrics:   metrics.NewCollector(nextHandlerMetricsNamespace(), zap.NewNop()),
		Estimator: wordEstimator{},
		Logger:    zap.NewNop(),
	})

	logger := zap.NewNop()
	mux := NewRouter(
		NewSkillHandler(svc, st, logger),
		NewTriggerHandler(svc, st, logger),
		NewHealthHandler(logger),
	)

	user := &types.User{UID: "u1", Name: "alice", Locale: "en"}
	require.NoError(t, st.CreateUser(context.Background(), user))

	return &handlerEnv{store: st, queue: q, svc: svc, mux: mux}
}

// do issues a request as user u1 and records the response.
func (e *handlerEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, "u1", method, target, body)
}

func (e *handlerEnv) doAs(t *testing.T, uid, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, rd)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// newRawRequest builds a request with a raw string body so tests can
// send deliberately malformed payloads.
func newRawRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req, httptest.NewRecorder()
}

// envelope mirrors Response with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success, "expected success envelope, got %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code types.ErrorCode) {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, string(code), env.Error.Code)
}
