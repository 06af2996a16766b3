package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"vaultshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request stats. Exported for use by health handlers (reset, collectHealth).
const (
	KeyReqTotal  = "health:ledger:req_total"
	KeyReqErrors = "health:ledger:req_errors"
	KeyResTime   = "health:ledger:res_time_total"
	KeyResCount  = "health:ledger:res_count"
	KeyStartTime = "health:ledger:start_time"
	KeyLastReq   = "health:ledger:last_request"
	KeyErrorLog  = "health:ledger:error_log"
)

// ErrorLogSize caps the error log list.
const ErrorLogSize = 50

// HealthMarker records request stats in Redis (skip /, /health*, favicon).
// Responses with a 5xx status are also pushed onto the error log.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		_, _ = rdb.Set(ctx, KeyLastReq, b, 0).Result()
		_, _ = rdb.Incr(ctx, KeyReqTotal).Result()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		_, _ = rdb.Incr(ctx, KeyResCount).Result()
		_, _ = rdb.IncrByFloat(ctx, KeyResTime, float64(ms)).Result()

		// A returned error has not been rendered yet; the global handler will
		// map it, so derive the status the same way.
		status := c.Response().StatusCode()
		msg := ""
		if err != nil {
			status = response.StatusFor(err)
			msg = err.Error()
		}
		if status >= 500 {
			_, _ = rdb.Incr(ctx, KeyReqErrors).Result()
			entry, _ := json.Marshal(map[string]interface{}{
				"time":     time.Now(),
				"method":   c.Method(),
				"path":     c.OriginalURL(),
				"status":   status,
				"message":  msg,
				"trace_id": GetTraceID(c),
			})
			_, _ = rdb.LPush(ctx, KeyErrorLog, entry).Result()
			_, _ = rdb.LTrim(ctx, KeyErrorLog, 0, ErrorLogSize-1).Result()
		}
		return err
	}
}
