package errors

import "fmt"

// 错误码
const (
	CodeSuccess         = 200
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeInternalError   = 500
	CodeDatabaseError   = 501
	CodeAuthError       = 502
	CodeValidationError = 503
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 预定义错误
var (
	ErrBadRequest    = New(CodeBadRequest, "请求参数错误")
	ErrUnauthorized  = New(CodeUnauthorized, "未授权")
	ErrForbidden     = New(CodeForbidden, "禁止访问")
	ErrNotFound      = New(CodeNotFound, "资源不存在")
	ErrConflict      = New(CodeConflict, "资源冲突")
	ErrInternalError = New(CodeInternalError, "内部服务器错误")
	ErrDatabaseError = New(CodeDatabaseError, "数据库错误")

	// 具体业务错误
	ErrInvalidCredentials  = New(CodeAuthError, "用户名或密码错误")
	ErrInvalidToken        = New(CodeUnauthorized, "无效的Token")
	ErrTokenExpired        = New(CodeUnauthorized, "Token已过期")
	ErrRecordNotFound      = New(CodeNotFound, "记录不存在")
	ErrInvalidStrategy     = New(CodeBadRequest, "无效的发布策略")
	ErrInvalidEnvironment  = New(CodeBadRequest, "无效的环境")
	ErrMissingVersion      = New(CodeBadRequest, "缺少目标版本")
	ErrStaleRiskAssessment = New(CodeConflict, "风险评估已过期, 请重新评估")
	ErrReadinessBlocked    = New(CodeConflict, "就绪检查存在阻断项, 发布被拒绝")
	ErrReleaseTerminal     = New(CodeConflict, "发布已处于终态")
	ErrReleaseNotPaused    = New(CodeConflict, "发布未处于暂停状态")
	ErrPromoteNotAllowed   = New(CodeConflict, "当前策略或状态不允许提升")
)
