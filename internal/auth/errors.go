package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenMalformed: токен не разбирается или в нём нет обязательных claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenBadSignature: подпись не сходится; частный случай ErrTokenMalformed.
	ErrTokenBadSignature = fmt.Errorf("%w: bad signature", ErrTokenMalformed)
	// ErrTokenExpired: срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSubjectMismatch: токен выпущен для другого клиента.
	ErrTokenSubjectMismatch = errors.New("token subject mismatch")
	// ErrEmptySecret возвращается при создании TokenService без ключа подписи.
	ErrEmptySecret = errors.New("token signing secret is empty")
)

// IsUnauthenticated сообщает, что ошибка означает невалидный токен (401).
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenSubjectMismatch)
}

// validationResult возвращает метку результата для метрик.
func validationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	default:
		return "error"
	}
}
