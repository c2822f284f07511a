package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
)

// DefaultTokenTTL: время жизни токена по умолчанию.
const DefaultTokenTTL = time.Hour

var signingMethod = jwt.SigningMethodHS256

// TokenOptions задаёт параметры TokenService.
type TokenOptions struct {
	TTL     time.Duration
	Clock   func() time.Time
	Logger  *log.Entry
	Metrics *metrics.AuthMetrics
}

// TokenOption настраивает TokenService.
type TokenOption func(*TokenOptions)

// WithTTL задаёт время жизни выпускаемых токенов.
func WithTTL(ttl time.Duration) TokenOption {
	return func(opts *TokenOptions) {
		opts.TTL = ttl
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(clock func() time.Time) TokenOption {
	return func(opts *TokenOptions) {
		opts.Clock = clock
	}
}

// WithTokenLogger задаёт logger.
func WithTokenLogger(logger *log.Entry) TokenOption {
	return func(opts *TokenOptions) {
		opts.Logger = logger
	}
}

// WithTokenMetrics задаёт метрики выпуска и проверки токенов.
func WithTokenMetrics(m *metrics.AuthMetrics) TokenOption {
	return func(opts *TokenOptions) {
		opts.Metrics = m
	}
}

// TokenService выпускает и проверяет HS256 bearer-токены.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Entry
	metrics *metrics.AuthMetrics
	parser  *jwt.Parser
}

// NewTokenService создаёт сервис с ключом подписи, загруженным при старте.
func NewTokenService(secret []byte, options ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	opts := TokenOptions{TTL: DefaultTokenTTL, Clock: time.Now}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTokenTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "token-service")
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &TokenService{
		secret:  key,
		ttl:     opts.TTL,
		now:     opts.Clock,
		logger:  logger,
		metrics: opts.Metrics,
		// Срок действия проверяем сами по инжектированным часам, чтобы порядок ошибок был детерминированным.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// TTL возвращает время жизни выпускаемых токенов.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue выпускает токен для subject со сроком now+TTL.
// Subject подписывается без изменений.
func (s *TokenService) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("issue token: %w", errors.New("subject is required"))
	}

	issuedAt := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}
	return signed, nil
}

// Validate проверяет токен. Ровно одна ошибка на вызов, по приоритету:
// Malformed (включая BadSignature), SubjectMismatch, Expired.
func (s *TokenService) Validate(token, expectedSubject string) error {
	err := s.validate(token, expectedSubject)
	s.recordValidation(err)
	return err
}

// ExtractSubject возвращает subject токена после проверки подписи, без проверки срока.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Authenticate определяет, кто выполняет запрос: подпись, срок и subject.
func (s *TokenService) Authenticate(token string) (string, error) {
	claims, err := s.parse(token)
	if err == nil {
		err = s.checkExpiry(claims)
	}
	s.recordValidation(err)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *TokenService) validate(token, expectedSubject string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if claims.Subject != expectedSubject {
		return ErrTokenSubjectMismatch
	}
	return s.checkExpiry(claims)
}

func (s *TokenService) checkExpiry(claims *jwt.RegisteredClaims) error {
	if !s.now().Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}

func (s *TokenService) parse(token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, ErrTokenBadSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenMalformed)
	}
	return claims, nil
}

func (s *TokenService) recordValidation(err error) {
	if s.metrics != nil {
		s.metrics.RecordTokenValidation(validationResult(err))
	}
	if err != nil {
		s.logger.WithField("result", validationResult(err)).Debug("token rejected")
	}
}

// ParseBearer достаёт токен из значения заголовка Authorization.
func ParseBearer(header string) (string, error) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrTokenMalformed)
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrTokenMalformed)
	}
	return token, nil
}
