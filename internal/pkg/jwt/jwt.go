package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

// OperatorClaims 操作员Claims
type OperatorClaims struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AuthType    string `json:"auth_type"`
	Type        string `json:"type"` // access or refresh
	jwt.RegisteredClaims
}

// GenerateAccessToken 生成访问Token
func GenerateAccessToken(username, email, displayName string) (string, error) {
	return generateToken(username, email, displayName, constants.JWTTypeAccess,
		config.GlobalConfig.Auth.JWT.AccessTokenExpire)
}

// GenerateRefreshToken 生成刷新Token
func GenerateRefreshToken(username, email, displayName string) (string, error) {
	return generateToken(username, email, displayName, constants.JWTTypeRefresh,
		config.GlobalConfig.Auth.JWT.RefreshTokenExpire)
}

func generateToken(username, email, displayName, tokenType string, expireSeconds int) (string, error) {
	cfg := config.GlobalConfig.Auth.JWT

	claims := OperatorClaims{
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		AuthType:    constants.AuthTypeLocal,
		Type:        tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expireSeconds) * time.Second)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken 解析Token
func ParseToken(tokenString string) (*OperatorClaims, error) {
	cfg := config.GlobalConfig.Auth.JWT

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})

	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeUnauthorized, "解析Token失败", err)
	}

	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, pkgErrors.ErrInvalidToken
}

// ValidateToken 验证Token有效性
func ValidateToken(tokenString string) (*OperatorClaims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	// 检查是否过期
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, pkgErrors.ErrTokenExpired
	}

	return claims, nil
}
