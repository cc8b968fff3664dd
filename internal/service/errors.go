package service

import (
	"errors"
	"fmt"

	"vigil-backend/internal/repository"
)

// ErrNotFound 家庭/设备/告警不存在
var ErrNotFound = errors.New("not found")

// ValidationError 调用方可修正的输入错误
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation 是否为 ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// notFound repository.ErrNotFound -> ErrNotFound，其它错误原样返回
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
