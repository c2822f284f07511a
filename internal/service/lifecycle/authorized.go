package lifecycle

import (
	"context"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// AuthorizedEngine проверяет права запрашивающего перед операциями Engine.
// Отказ в доступе никогда не меняет данные.
type AuthorizedEngine struct {
	engine *Engine
	policy *auth.Policy
}

// NewAuthorizedEngine оборачивает движок политикой доступа.
func NewAuthorizedEngine(engine *Engine, policy *auth.Policy) *AuthorizedEngine {
	return &AuthorizedEngine{engine: engine, policy: policy}
}

// Engine возвращает исходный движок.
func (a *AuthorizedEngine) Engine() *Engine {
	return a.engine
}

// PlaceAs оформляет заказ на customerID от имени requester.
func (a *AuthorizedEngine) PlaceAs(ctx context.Context, requester, customerID, product string, quantity int32) (domain.Order, error) {
	if err := a.policy.RequireAccess(customerID, requester); err != nil {
		return domain.Order{}, err
	}
	return a.engine.Place(ctx, customerID, product, quantity)
}

// UpdateAs изменяет заказ, если requester владелец или администратор.
func (a *AuthorizedEngine) UpdateAs(ctx context.Context, requester string, orderID int64, product string, quantity int32) (domain.Order, error) {
	order, err := a.engine.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := a.policy.RequireAccess(order.CustomerID, requester); err != nil {
		return domain.Order{}, err
	}
	return a.engine.Update(ctx, orderID, product, quantity)
}

// GetAs возвращает заказ владельцу или администратору.
func (a *AuthorizedEngine) GetAs(ctx context.Context, requester string, orderID int64) (domain.Order, error) {
	order, err := a.engine.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := a.policy.RequireAccess(order.CustomerID, requester); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// TimelineAs возвращает историю заказа владельцу или администратору.
func (a *AuthorizedEngine) TimelineAs(ctx context.Context, requester string, orderID int64) ([]domain.TimelineEvent, error) {
	if _, err := a.GetAs(ctx, requester, orderID); err != nil {
		return nil, err
	}
	return a.engine.Timeline(ctx, orderID)
}

// DeleteAs удаляет заказ, если requester владелец или администратор.
func (a *AuthorizedEngine) DeleteAs(ctx context.Context, requester string, orderID int64) error {
	order, err := a.engine.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := a.policy.RequireAccess(order.CustomerID, requester); err != nil {
		return err
	}
	return a.engine.Delete(ctx, orderID)
}

// ListAs возвращает все заказы администратору и собственные заказы остальным.
func (a *AuthorizedEngine) ListAs(ctx context.Context, requester string, limit int) ([]domain.Order, error) {
	admin, err := a.policy.IsAdmin(requester)
	if err != nil {
		return nil, err
	}
	if admin {
		return a.engine.List(ctx, limit)
	}
	return a.engine.ListByCustomer(ctx, requester, limit)
}
