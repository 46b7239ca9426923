package service

import (
	"golang.org/x/crypto/bcrypt"

	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/jwt"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

type AuthService interface {
	Login(req *dto.LoginRequest) (*dto.LoginResponse, error)
	RefreshToken(refreshToken string) (*dto.LoginResponse, error)
}

type authService struct {
	cfg *config.AuthConfig
}

func NewAuthService(cfg *config.AuthConfig) AuthService {
	return &authService{
		cfg: cfg,
	}
}

func (s *authService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	operator, err := s.authenticate(req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(operator)
}

// authenticate 校验配置中的操作员账号, 密码为bcrypt哈希
func (s *authService) authenticate(username, password string) (*dto.OperatorInfo, error) {
	for _, operator := range s.cfg.Operators {
		if operator.Username != username {
			continue
		}
		if err := bcrypt.CompareHashAndPassword(
			[]byte(operator.PasswordHash), []byte(password)); err != nil {
			return nil, pkgErrors.ErrInvalidCredentials
		}
		return &dto.OperatorInfo{
			Username:    operator.Username,
			Email:       operator.Email,
			DisplayName: operator.DisplayName,
			AuthType:    constants.AuthTypeLocal,
		}, nil
	}
	return nil, pkgErrors.ErrInvalidCredentials
}

func (s *authService) RefreshToken(refreshToken string) (*dto.LoginResponse, error) {
	claims, err := jwt.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != constants.JWTTypeRefresh {
		return nil, pkgErrors.ErrInvalidToken
	}

	return s.issueTokens(&dto.OperatorInfo{
		Username:    claims.Username,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		AuthType:    claims.AuthType,
	})
}

func (s *authService) issueTokens(operator *dto.OperatorInfo) (*dto.LoginResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(
		operator.Username,
		operator.Email,
		operator.DisplayName,
	)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "生成AccessToken失败", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(
		operator.Username,
		operator.Email,
		operator.DisplayName,
	)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "生成RefreshToken失败", err)
	}

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.cfg.JWT.AccessTokenExpire,
		User:         operator,
	}, nil
}
