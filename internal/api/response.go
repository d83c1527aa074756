package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// requestError 由请求内容导致的错误
type requestError struct {
	status  int
	message string
	cause   error
}

func (e *requestError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error {
	return e.cause
}

func badRequest(message string, cause error) error {
	return &requestError{status: fiber.StatusBadRequest, message: message, cause: cause}
}

// ApplyErrorToResponse 写入错误响应，请求错误使用其状态码，其余按 500 处理
func ApplyErrorToResponse(c *fiber.Ctx, message string, err error) error {
	status := fiber.StatusInternalServerError

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		status = reqErr.status
		message = reqErr.message
		err = reqErr.cause
	}

	body := ErrorResponse{Error: message}
	if err != nil {
		body.Detail = err.Error()
	}

	if status >= fiber.StatusInternalServerError {
		log.Errorf("%s %s: %s: %v", c.Method(), c.Path(), message, err)
	} else {
		log.Debugf("%s %s: %s: %v", c.Method(), c.Path(), message, err)
	}

	return c.Status(status).JSON(body)
}

// ApplySuccessToResponse 写入 JSON 成功响应
func ApplySuccessToResponse(c *fiber.Ctx, data interface{}) error {
	if data == nil {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.JSON(data)
}
