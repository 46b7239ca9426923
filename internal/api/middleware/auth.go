package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/pkg/jwt"
	"release-orchestrator/pkg/constants"
	"release-orchestrator/pkg/responses"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取Authorization header
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			responses.ErrorWithCode(c, 401, "缺少Authorization Header")
			c.Abort()
			return
		}

		// 检查Bearer前缀
		if !strings.HasPrefix(authHeader, constants.HeaderBearerPrefix) {
			responses.ErrorWithCode(c, 401, "Authorization格式错误")
			c.Abort()
			return
		}

		// 提取Token
		token := strings.TrimPrefix(authHeader, constants.HeaderBearerPrefix)

		// 验证Token
		claims, err := jwt.ValidateToken(token)
		if err != nil {
			responses.Error(c, err)
			c.Abort()
			return
		}

		// 检查Token类型(必须是AccessToken)
		if claims.Type != constants.JWTTypeAccess {
			responses.ErrorWithCode(c, 401, "无效的Token类型")
			c.Abort()
			return
		}

		// 将操作员信息存入context
		operator := &dto.OperatorInfo{
			Username:    claims.Username,
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
			AuthType:    claims.AuthType,
		}
		c.Set("operator", operator)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// Username 从context取当前操作员用户名
func Username(c *gin.Context) string {
	return c.GetString("username")
}
