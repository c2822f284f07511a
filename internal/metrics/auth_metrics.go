package metrics

import "github.com/prometheus/client_golang/prometheus"

// AuthMetrics считает выпуск токенов и решения авторизации.
type AuthMetrics struct {
	tokensIssued     prometheus.Counter
	tokenValidations *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	logins           *prometheus.CounterVec
}

// NewAuthMetrics создаёт метрики в DefaultRegisterer.
func NewAuthMetrics() *AuthMetrics {
	return NewAuthMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewAuthMetricsWithRegisterer создаёт метрики в переданном реестре.
func NewAuthMetricsWithRegisterer(registerer prometheus.Registerer) *AuthMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &AuthMetrics{
		tokensIssued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_tokens_issued_total",
			Help: "Total number of bearer tokens issued",
		}),
		tokenValidations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_token_validations_total",
			Help: "Token validation results",
		}, []string{"result"}),
		decisions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_authorization_decisions_total",
			Help: "Authorization decisions by outcome",
		}, []string{"decision"}),
		logins: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"result"}),
	}
}

// RecordTokenIssued увеличивает счётчик выпущенных токенов.
func (m *AuthMetrics) RecordTokenIssued() {
	m.tokensIssued.Inc()
}

// RecordTokenValidation фиксирует результат проверки токена.
func (m *AuthMetrics) RecordTokenValidation(result string) {
	m.tokenValidations.WithLabelValues(result).Inc()
}

// RecordDecision фиксирует решение авторизации.
func (m *AuthMetrics) RecordDecision(decision string) {
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordLogin фиксирует попытку входа.
func (m *AuthMetrics) RecordLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}
