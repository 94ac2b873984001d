package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking-inventory/internal/config"
)

// captureWriter tees the response body, up to limit bytes, while writing it
// to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache serves cached GET responses from Redis.  Every cache key
// embeds a generation number; any write through the same middleware bumps
// it, so a committed mutation is never followed by a stale read.
type ResponseCache struct {
	cfg   config.CacheConfig
	rdb   *redis.Client
	today func() string
}

// CacheOption configures a ResponseCache.
type CacheOption func(*ResponseCache)

// WithDay adds the current calendar day to every key.  Responses that depend
// on "today", such as futureOnly show lists, then expire at midnight.
func WithDay(today func() string) CacheOption {
	return func(rc *ResponseCache) { rc.today = today }
}

// NewRedisCache returns the cache middleware, or a pass-through when caching
// is disabled or Redis is unavailable.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, opts ...CacheOption) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	rc := &ResponseCache{cfg: cfg, rdb: rdb}
	for _, o := range opts {
		o(rc)
	}
	return rc.handle
}

func (rc *ResponseCache) generationKey() string { return rc.cfg.Prefix + ":gen" }

func (rc *ResponseCache) handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := strings.ToUpper(c.Request().Method)
		if !rc.cfg.Methods[method] {
			err := next(c)
			if !isRead(method) {
				rc.invalidate(c)
			}
			return err
		}

		ctx := c.Request().Context()
		gen, err := rc.rdb.Get(ctx, rc.generationKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return next(c)
		}
		key := rc.entryKey(gen, c)

		if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
			if status, hdr, body, ok := decodePayload(bs); ok {
				for k, vals := range hdr {
					if !replayable(k) {
						continue
					}
					for _, v := range vals {
						c.Response().Header().Add(k, v)
					}
				}
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(status, hdr.Get(echo.HeaderContentType), body)
			}
		}

		cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
		c.Response().Writer = cw
		c.Response().Header().Set("X-Cache", "MISS")
		if err := next(c); err != nil {
			return err
		}
		if cw.status != http.StatusOK || cw.truncated {
			return nil
		}
		payload, err := encodePayload(cw.status, c.Response().Header().Clone(), cw.buf.Bytes())
		if err != nil {
			return nil
		}
		// detached from the request so a client disconnect does not drop the write
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = rc.rdb.Set(storeCtx, key, payload, rc.cfg.TTL).Err()
		return nil
	}
}

// replayable reports whether a stored header belongs to the content rather
// than to the request that produced it.
func replayable(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case echo.HeaderContentLength, echo.HeaderXRequestID, "X-Cache", "Retry-After":
		return false
	}
	return !strings.HasPrefix(http.CanonicalHeaderKey(name), "X-Ratelimit-")
}

func (rc *ResponseCache) invalidate(c echo.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), time.Second)
	defer cancel()
	if err := rc.rdb.Incr(ctx, rc.generationKey()).Err(); err != nil {
		c.Logger().Warnj(log.JSON{"msg": "cache invalidation failed", "error": err.Error()})
	}
}

// entryKey hashes the concrete request path and query, so /shows/1 and
// /shows/2 never share an entry.
func (rc *ResponseCache) entryKey(gen int64, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery))
	if rc.today != nil {
		return fmt.Sprintf("%s:%d:%s:%x", rc.cfg.Prefix, gen, rc.today(), sum[:])
	}
	return fmt.Sprintf("%s:%d:%x", rc.cfg.Prefix, gen, sum[:])
}

// encodePayload packs [status u32][header length u32][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(bs[0:4]))
	n := int(binary.BigEndian.Uint32(bs[4:8]))
	if n > len(bs)-8 {
		return 0, nil, nil, false
	}
	hdr := make(http.Header)
	if n > 0 {
		if err := json.Unmarshal(bs[8:8+n], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+n:], true
}
