package domain

import (
	"strings"
	"time"
)

// Customer описывает зарегистрированного клиента магазина.
type Customer struct {
	ID int64
	// CustomerID: публичный идентификатор вида CUS_ddMMyy_XXXXXXX, неизменяемый.
	CustomerID string
	Username   string
	FirstName  string
	LastName   string
	Email      string
	// PasswordHash заполнен только для локальных учётных записей.
	PasswordHash string
	// ExternalRef: ссылка на учётную запись у провайдера идентификации.
	ExternalRef string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UsesExternalIdentity сообщает, что пароль проверяет внешний провайдер.
func (c Customer) UsesExternalIdentity() bool {
	return c.ExternalRef != ""
}

// NormalizeEmail приводит email к каноничному виду для поиска и уникальности.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoleName задаёт уровень доступа клиента.
type RoleName string

const (
	// RoleUser: роль по умолчанию для новых клиентов.
	RoleUser RoleName = "USER"
	// RoleAdmin даёт доступ ко всем ресурсам.
	RoleAdmin RoleName = "ADMIN"
)

// Role связывает клиента с его уровнем доступа (один к одному).
type Role struct {
	CustomerID string
	Name       RoleName
}

// IsAdmin сравнивает имя роли без учёта регистра.
func (r Role) IsAdmin() bool {
	return strings.EqualFold(string(r.Name), string(RoleAdmin))
}
