package domain

import "time"

// IdentityUser: данные учётной записи, передаваемые провайдеру идентификации.
type IdentityUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// IdentityProvider описывает внешний сервис учётных записей.
type IdentityProvider interface {
	// CreateUser заводит учётную запись и возвращает её внешний идентификатор.
	CreateUser(user IdentityUser) (string, error)
	UpdateUser(ref string, user IdentityUser) error
	SetEnabled(ref string, enabled bool) error
	DeleteUser(ref string) error
	// VerifyPassword возвращает ErrInvalidCredentials при неверном пароле.
	VerifyPassword(ref, password string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPurger удаляет доставленные события после срока хранения.
type OutboxPurger interface {
	// PurgeSent удаляет до limit отправленных сообщений, обновлённых не позже before.
	PurgeSent(before time.Time, limit int) (int, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID int64) ([]TimelineEvent, error)
	// DeleteByOrder очищает историю удалённого заказа.
	DeleteByOrder(orderID int64) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
