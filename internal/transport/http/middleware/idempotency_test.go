package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
)

type fakeIdempotencyRepo struct {
	requests  map[string]entity.ProcessedRequest
	lookupErr error
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{requests: make(map[string]entity.ProcessedRequest)}
}

func (r *fakeIdempotencyRepo) GetRequest(ctx context.Context, requestID string) (entity.ProcessedRequest, bool, error) {
	if r.lookupErr != nil {
		return entity.ProcessedRequest{}, false, r.lookupErr
	}
	rec, ok := r.requests[requestID]
	return rec, ok, nil
}

func (r *fakeIdempotencyRepo) SaveRequest(ctx context.Context, rec *entity.ProcessedRequest) error {
	if _, ok := r.requests[rec.RequestID]; ok {
		return repository.ErrDuplicateKey
	}
	r.requests[rec.RequestID] = *rec
	return nil
}

func (r *fakeIdempotencyRepo) MarkMessageProcessed(ctx context.Context, messageID string) error {
	return nil
}

func idempotentRouter(repo repository.IdempotencyRepository, required bool, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	router := gin.New()
	router.POST("/instantiate", Idempotency(repo, required, log), func(c *gin.Context) {
		*calls++
		c.Header("Location", "/api/operations/op-1")
		c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"operationId": "op-1"}})
	})
	router.POST("/fail", Idempotency(repo, required, log), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": "state conflict"}})
	})
	return router
}

func post(router *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDuplicateRequestReplaysResponse(t *testing.T) {
	var calls int
	repo := newFakeIdempotencyRepo()
	router := idempotentRouter(repo, false, &calls)

	first := post(router, "/instantiate", "req-1")
	require.Equal(t, http.StatusAccepted, first.Code)

	second := post(router, "/instantiate", "req-1")
	assert.Equal(t, 1, calls, "handler must run once")
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, "/api/operations/op-1", second.Header().Get("Location"))
}

func TestDistinctKeysRunSeparately(t *testing.T) {
	var calls int
	router := idempotentRouter(newFakeIdempotencyRepo(), false, &calls)

	post(router, "/instantiate", "req-1")
	post(router, "/instantiate", "req-2")
	assert.Equal(t, 2, calls)
}

func TestFailureResponsesAreNotCached(t *testing.T) {
	var calls int
	router := idempotentRouter(newFakeIdempotencyRepo(), false, &calls)

	post(router, "/fail", "req-1")
	post(router, "/fail", "req-1")
	assert.Equal(t, 2, calls, "non-2xx responses must not be replayed")
}

func TestMissingKeyRequired(t *testing.T) {
	var calls int
	router := idempotentRouter(newFakeIdempotencyRepo(), true, &calls)

	rec := post(router, "/instantiate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestMissingKeyOptional(t *testing.T) {
	var calls int
	router := idempotentRouter(newFakeIdempotencyRepo(), false, &calls)

	rec := post(router, "/instantiate", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestLookupErrorFailsClosed(t *testing.T) {
	var calls int
	repo := newFakeIdempotencyRepo()
	repo.lookupErr = errors.New("connection refused")
	router := idempotentRouter(repo, false, &calls)

	// A broken cache must not let a possible duplicate through.
	rec := post(router, "/instantiate", "req-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestAlternateHeaderAccepted(t *testing.T) {
	var calls int
	repo := newFakeIdempotencyRepo()
	router := idempotentRouter(repo, false, &calls)

	req := httptest.NewRequest(http.MethodPost, "/instantiate", nil)
	req.Header.Set("X-Idempotency-Key", "req-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	_, found, err := repo.GetRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, found)
}
