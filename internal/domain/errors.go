package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего названия товара.
	ErrProductRequired = errors.New("product is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка отсутствующего email.
	ErrEmailRequired = errors.New("email is required")
	// Ошибка отсутствующего имени пользователя.
	ErrUsernameRequired = errors.New("username is required")
	// Ошибка слишком короткого пароля.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrCustomerNotFound возвращается, если клиент не найден в репозитории.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerExists возвращается при повторной регистрации email или customer_id.
	ErrCustomerExists = errors.New("customer already exists")
	// ErrCustomerInactive возвращается при попытке входа заблокированного клиента.
	ErrCustomerInactive = errors.New("customer is blocked")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRoleNotFound возвращается, если у клиента нет роли.
	ErrRoleNotFound = errors.New("role not found")
	// ErrAccessDenied сигнализирует, что запрашивающий не владелец и не администратор.
	ErrAccessDenied = errors.New("access denied")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInvalidTransition возвращается при попытке перевести заказ назад по жизненному циклу.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrIdentityProvider: ошибка внешнего провайдера учётных записей.
	ErrIdentityProvider = errors.New("identity provider error")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrRoleNotFound)
}

// IsValidation проверяет, является ли ошибка ошибкой входных данных.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrProductRequired),
		errors.Is(err, ErrQuantityInvalid),
		errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrInvalidTransition):
		return true
	default:
		return false
	}
}
