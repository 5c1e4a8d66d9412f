package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode 에러 코드 정의
type ErrorCode string

const (
	// Business Errors
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeConflict               ErrorCode = "CONFLICT"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"

	// Technical Errors
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrCodeNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeoutError       ErrorCode = "TIMEOUT_ERROR"
	ErrCodeSerializationError ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeUnknownError       ErrorCode = "UNKNOWN_ERROR"
)

// DomainError 도메인 에러 구조체
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// New 새로운 도메인 에러 생성
func New(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Newf 포맷 문자열로 도메인 에러 생성
func Newf(code ErrorCode, format string, args ...interface{}) *DomainError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 기존 에러를 래핑한 도메인 에러 생성
func Wrap(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf 에러 체인에서 첫 번째 도메인 에러 코드 추출
func CodeOf(err error) (ErrorCode, bool) {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr.Code, true
	}
	return "", false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsValidation 잘못된 요청 에러인지 판단
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsConflict 유니크 제약 위반(중복 요청)인지 판단
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsInvalidStateTransition 허용되지 않은 상태 전이인지 판단
func IsInvalidStateTransition(err error) bool { return hasCode(err, ErrCodeInvalidStateTransition) }

// IsNotFound 조회 대상이 없는지 판단
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsRetryable 재시도 가능한 에러인지 판단
func IsRetryable(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeDatabaseError, ErrCodeNetworkError, ErrCodeTimeoutError:
		return true
	}
	return false
}

// IsBusinessError 비즈니스 에러인지 판단 (재시도 불필요)
func IsBusinessError(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeValidation, ErrCodeInvalidStateTransition, ErrCodeConflict, ErrCodeNotFound:
		return true
	}
	return false
}
