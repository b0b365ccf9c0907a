package handler // handler defines http handlers

import (
    "errors"   // errors provides the sentinel used by getUserID
    "strconv"  // strconv converts claim values to numeric types
    "strings"  // strings provides trimming helpers for validation

    "github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the authenticated user's ID from echo.Context.  The
// JWT middleware stores the raw "sub" claim, which arrives as a float64
// after JSON decoding; every numeric representation is accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// fieldErrors accumulates user-correctable validation failures keyed by
// field name.  Handlers return the whole map in a single 400 response so
// a form can annotate every offending input at once.
type fieldErrors map[string]string

func (fe fieldErrors) add(field, msg string) { fe[field] = msg }

func (fe fieldErrors) ok() bool { return len(fe) == 0 }

// requireText trims s and records a validation failure when the result is
// shorter than min runes.
func (fe fieldErrors) requireText(field, s string, min int) string {
    s = strings.TrimSpace(s)
    if len([]rune(s)) < min {
        fe.add(field, "must be at least "+strconv.Itoa(min)+" characters")
    }
    return s
}
