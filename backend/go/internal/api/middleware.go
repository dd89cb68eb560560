package api

import (
	"Friday/backend/go/pkg/ratelimiter"
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/tidwall/gjson"
)

const ctxUserID = "userID"

// AuthMiddleware 创建一个 Gin 中间件，用于验证 JWT。
// 路径中带有 :user 参数时，它必须与 token 中的用户一致。
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			return
		}

		// 我们期望的格式是 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Malformed Authorization header"})
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		userID, _ := claims["sub"].(string)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		if pathUser := c.Param("user"); pathUser != "" && pathUser != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not allowed to access another user's data"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// userFor 返回 token 中的用户；未启用认证时返回请求里给出的 given。
func userFor(c *gin.Context, given string) string {
	if id := c.GetString(ctxUserID); id != "" {
		return id
	}
	return given
}

// maxBodyBytes 是限流前读取请求体的上限。
const maxBodyBytes = 1 << 20

// RateLimitMiddleware 按用户限流：优先使用 token 中的用户，其次是请求体中的 user_id，都没有时按客户端 IP。
// limiter 为 nil 时不限流。
func RateLimitMiddleware(limiter *ratelimiter.Keyed) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := c.GetString(ctxUserID)
		if key == "" && c.Request.Body != nil {
			body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request payload too large"})
					return
				}
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
				return
			}
			// 读完后放回去，后面的 ShouldBindJSON 还要用
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			key = gjson.GetBytes(body, "user_id").String()
		}
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages, please slow down"})
			return
		}
		c.Next()
	}
}
