package domain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок биллинга. Ошибки SDK шлюза и хранилища переводятся
// в эти значения до того, как попадут в HTTP слой.
var (
	// ErrConfiguration отсутствует обязательная настройка (секрет, цена по умолчанию).
	ErrConfiguration = errors.New("configuration error")

	// ErrSignatureInvalid подпись вебхука не прошла проверку.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrMalformedEvent тело события подписано, но не разбирается.
	ErrMalformedEvent = errors.New("malformed webhook event")

	// ErrNotEligible пользователь еще ни разу не оформлял подписку.
	ErrNotEligible = errors.New("not eligible")

	// ErrUnmappedCustomer внешний клиент не связан ни с одним пользователем.
	ErrUnmappedCustomer = errors.New("unmapped customer")

	// ErrTransientStore хранилище временно недоступно, запрос можно повторить.
	ErrTransientStore = errors.New("transient store failure")

	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")

	// ErrGatewayUnavailable платежный шлюз недоступен (сеть, 429, 5xx).
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected платежный шлюз отклонил запрос.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

// GatewayError несет детали ошибки шлюза и сопоставляется с
// ErrGatewayUnavailable или ErrGatewayRejected через errors.Is.
// Исходная ошибка SDK доступна только как текст.
type GatewayError struct {
	Op         string
	Kind       error
	Code       string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Code != "" {
		msg += " (code=" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Is(target error) bool {
	return target == e.Kind
}

// Retryable сообщает, имеет ли смысл повторить вызов.
func (e *GatewayError) Retryable() bool {
	return e.Kind == ErrGatewayUnavailable
}
