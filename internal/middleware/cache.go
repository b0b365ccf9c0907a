package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/rewearhq/rewear/internal/config"
)

// captureWriter tees the response into a buffer while still streaming
// it to the client, so a browse page can be cached without delaying it.
// Once the captured size passes the limit the buffer stops growing and
// the oversized response is simply not cached.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 {
        cw.buf.Write(b)
    } else if remain := cw.limit - cw.size; remain > 0 {
        if int64(len(b)) <= remain {
            cw.buf.Write(b)
        } else {
            cw.buf.Write(b[:remain])
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// cacheKeyFrom builds a stable Redis key for the request.  The route
// template (not the raw path) goes into the hash so /v1/items/7 and
// /v1/items/8 share a strategy but not a key, and the query string is
// included by default because browse filters live there.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    method := r.Method
    route := c.Path()
    query := r.URL.RawQuery

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", route)
    case "method_route":
        parts = append(parts, "method", method, "route", route)
    case "method_route_query":
        parts = append(parts, "method", method, "route", route, "q", query)
    default: // "route_query"
        parts = append(parts, "route", route, "q", query)
    }

    tail := strings.Join(parts[1:], ":")
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%x", parts[0], sum[:])
}

// Cached entries pack status, headers and body into one Redis value:
// [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// NewRedisCache fronts the public catalog listings.  It stores headers +
// body so clients see identical formatting as the original response.
// Entries age out by TTL only; a freshly listed item can lag behind the
// cached browse page by at most that window.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 5 * time.Minute
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }

            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        // Echo recomputes Content-Length on write.
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            // Only successful pages are cached; errors and truncated
            // captures pass through uncached.
            if cw.status != http.StatusOK {
                return nil
            }
            if maxBody > 0 && cw.size > maxBody {
                return nil
            }
            hdr := make(http.Header, len(c.Response().Header()))
            for k, vals := range c.Response().Header() {
                vv := make([]string, len(vals))
                copy(vv, vals)
                hdr[k] = vv
            }
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                _ = rdb.SetEx(context.Background(), key, payload, ttl).Err()
            }
            return nil
        }
    }
}
