package middleware

import (
	"bytes"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
)

// Idempotency replays the cached response for a repeated request id
// instead of re-running the handler. Responses are cached only after a
// successful (2xx) run, keyed by the caller's Idempotency-Key. The
// cache is write-once: a concurrent loser's duplicate insert is simply
// dropped, relying on the store's uniqueness constraint rather than a
// check-then-act read.
func Idempotency(repo repository.IdempotencyRepository, required bool, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			key = c.GetHeader("X-Idempotency-Key")
		}
		if key == "" {
			if required {
				c.JSON(nethttp.StatusBadRequest, gin.H{"error": gin.H{"message": "idempotency key is required"}})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		// Fail closed: running the handler without the cache check
		// would execute a possible duplicate.
		rec, found, err := repo.GetRequest(c.Request.Context(), key)
		if err != nil {
			log.WithError(err).Warn("idempotency: lookup failed")
			c.JSON(nethttp.StatusServiceUnavailable, gin.H{"error": gin.H{"message": "idempotency check unavailable, retry"}})
			c.Abort()
			return
		}
		if found {
			if rec.Location != "" {
				c.Header("Location", rec.Location)
			}
			c.Data(rec.Status, "application/json", rec.Body)
			c.Abort()
			return
		}

		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := capture.Status()
		if status < 200 || status >= 300 {
			return
		}
		saveErr := repo.SaveRequest(c.Request.Context(), &entity.ProcessedRequest{
			RequestID: key,
			Status:    status,
			Location:  capture.Header().Get("Location"),
			Body:      capture.body.Bytes(),
		})
		if saveErr != nil && !errors.Is(saveErr, repository.ErrDuplicateKey) {
			log.WithError(saveErr).Warn("idempotency: cache write failed")
		}
	}
}

// captureWriter tees the response body so it can be cached.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
