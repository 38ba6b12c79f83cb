package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// UserContextKey хранит идентичность администратора в контексте запроса.
const UserContextKey contextKey = "auth_user"

// AuthUser — идентичность из проверенного токена.
type AuthUser struct {
	ID    int64
	Email string
}

type authClaims struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет Bearer-токен административных запросов.
// Выпуск токенов живёт во внешнем сервисе, здесь только проверка подписи.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if tokenStr == "" || tokenStr == header {
				writeAuthError(w)
				return
			}
			claims := &authClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeAuthError(w)
				return
			}
			user := AuthUser{ID: claims.ID, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, user)))
		})
	}
}

// UserFromContext возвращает идентичность администратора, если она есть.
func UserFromContext(ctx context.Context) (AuthUser, bool) {
	user, ok := ctx.Value(UserContextKey).(AuthUser)
	return user, ok
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Not authorized."}`))
}
