package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// loadPassword: пароль всех покупателей нагрузочного прогона.
const loadPassword = "load-test-password"

// account: покупатель, от имени которого воркер оформляет заказы.
type account struct {
	customerID string
	token      string
}

// provisioner заводит покупателей через HTTP API сервиса.
type provisioner struct {
	baseURL string
	client  *http.Client
}

func newProvisioner(baseURL string, timeout time.Duration) *provisioner {
	return &provisioner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// provision регистрирует покупателя и получает для него токен.
func (p *provisioner) provision(ctx context.Context, username string) (account, error) {
	email := username + "@load.example.com"
	if err := p.post(ctx, "/api/customers", map[string]string{
		"username": username,
		"email":    email,
		"password": loadPassword,
	}, http.StatusCreated, nil); err != nil {
		return account{}, fmt.Errorf("register %s: %w", username, err)
	}

	var login struct {
		Token      string `json:"token"`
		CustomerID string `json:"customer_id"`
	}
	if err := p.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": loadPassword,
	}, http.StatusOK, &login); err != nil {
		return account{}, fmt.Errorf("login %s: %w", username, err)
	}
	if login.Token == "" || login.CustomerID == "" {
		return account{}, fmt.Errorf("login %s: empty token in response", username)
	}
	return account{customerID: login.CustomerID, token: login.Token}, nil
}

func (p *provisioner) post(ctx context.Context, path string, body any, wantStatus int, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, env.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// provisionAccounts заводит по одному покупателю на воркер.
func provisionAccounts(ctx context.Context, p *provisioner, tag, runID string, count int) ([]account, error) {
	accounts := make([]account, 0, count)
	for i := 0; i < count; i++ {
		acc, err := p.provision(ctx, fmt.Sprintf("%s-%s-%d", tag, runID, i))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}
