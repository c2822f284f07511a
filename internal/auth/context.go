package auth

import "context"

type subjectKey struct{}

// WithSubject кладёт аутентифицированного клиента в контекст запроса.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext возвращает клиента, положенного транспортным слоем.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok && subject != ""
}
