package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"RPGMixer/core/auth"
	"RPGMixer/logger"
)

type contextKey string

const operatorKey contextKey = "operator"

// TokenRequest 登录请求体
type TokenRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

// TokenResponse 登录响应体
type TokenResponse struct {
	Token     string    `json:"token"`
	Operator  string    `json:"operator"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthHandler issues and checks operator tokens. With an empty secret every
// request is let through.
type AuthHandler struct {
	secret string
	ttl    time.Duration
	creds  auth.Credentials
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(secret string, ttl time.Duration, creds auth.Credentials) *AuthHandler {
	return &AuthHandler{secret: secret, ttl: ttl, creds: creds}
}

// Enabled reports whether requests must carry a token.
func (h *AuthHandler) Enabled() bool {
	return h.secret != ""
}

// TokenHandler 校验操作员密码并签发 token
func (h *AuthHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if !h.Enabled() || !h.creds.Enabled() {
		http.Error(w, "Token login is not configured", http.StatusNotFound)
		return
	}

	var req TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.creds.Verify(req.Operator, req.Password); err != nil {
		logger.Warn("[Auth] 密码验证失败", logger.String("operator", req.Operator))
		http.Error(w, "Invalid operator or password", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(h.secret, req.Operator, h.ttl)
	if err != nil {
		logger.Error("[Auth] 生成Token失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	logger.Info("[Auth] 签发Token", logger.String("operator", req.Operator))
	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		Operator:  req.Operator,
		ExpiresAt: time.Now().Add(h.ttl).UTC(),
	})
}

// bearerToken reads the Authorization header, or the token query parameter
// for websocket upgrades where browsers cannot set headers.
func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errors.New("authorization header is required")
}

// Middleware rejects requests without a valid token.
func (h *AuthHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		token, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseToken(h.secret, token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext returns the authenticated operator, or "" when auth is off.
func OperatorFromContext(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey).(string)
	return op
}
