package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // SQL database interactions
    "net/http"     // HTTP status codes and primitives
    "strconv"      // string-to-int conversion
    "strings"      // string manipulation utilities
    "time"         // timeouts for DB calls

    "github.com/golang-jwt/jwt/v5" // JSON Web Token library for parsing access tokens
    "github.com/labstack/echo/v4"  // Echo framework for HTTP routing

    "github.com/rewearhq/rewear/internal/config"     // app configuration
    "github.com/rewearhq/rewear/internal/model"      // domain constants
    "github.com/rewearhq/rewear/internal/repository" // DB repositories
    "github.com/rewearhq/rewear/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.  A user record is
// created on first successful registration; the JWT it receives carries
// the identity every other service call trusts.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID     uint64 `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Points int64  `json:"points"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register: create a MEMBER with the signup point grant and return tokens
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Name, req.Password, h.Cfg.BcryptCost, h.Cfg.SignupPointsGrant)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, model.RoleMember, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusCreated, authResp{
		User:    userPart{ID: uid, Email: req.Email, Name: req.Name, Role: model.RoleMember, Points: int64(h.Cfg.SignupPointsGrant)},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Points: u.Points},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(newRef.Raw), newRef.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userPart{ID: userID, Email: u.Email, Name: u.Name, Role: u.Role, Points: u.Points},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// RefreshAccess: validate a refresh token and return a new access token
// WITHOUT rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    raw := strings.TrimSpace(req.RefreshToken)
    hash := utils.HashRefreshRaw(raw)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        // Invalid, expired or revoked refresh token
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    // Only return a new access token; do not rotate the refresh token
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes sessions.  Two modes: a `refresh_token` in the body
// revokes that specific token; a bare Authorization header with no body
// token revokes every session of that user.  The route is registered
// outside the JWT middleware so the header is parsed here.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    hasBearer := false
    authHeader := c.Request().Header.Get("Authorization")
    if strings.HasPrefix(authHeader, "Bearer ") {
        rawToken := strings.TrimPrefix(authHeader, "Bearer ")
        tok, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
            if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                return nil, echo.ErrUnauthorized
            }
            return []byte(h.Cfg.JWTSecret), nil
        })
        if err == nil && tok.Valid {
            if claims, ok := tok.Claims.(jwt.MapClaims); ok {
                switch subVal := claims["sub"].(type) {
                case float64:
                    uid = uint64(subVal)
                    hasBearer = true
                case string:
                    if parsed, err := strconv.ParseUint(subVal, 10, 64); err == nil {
                        uid = parsed
                        hasBearer = true
                    }
                }
            }
        }
    }

    // Invalid JSON just leaves the refresh token empty; the bearer may
    // still suffice for revoking all sessions.
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if hasBearer && refreshToken == "" {
        if uid == 0 {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
        }
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }

    if refreshToken == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(refreshToken)
    if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
    }
    return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's profile including the current
// point balance shown on the profile page.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    resp := echo.Map{
        "id":     u.ID,
        "email":  u.Email,
        "name":   u.Name,
        "role":   u.Role,
        "points": u.Points,
    }
    if u.AvatarURL != nil {
        resp["avatar_url"] = *u.AvatarURL
    }
    return c.JSON(http.StatusOK, resp)
}
