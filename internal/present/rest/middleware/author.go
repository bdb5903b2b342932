package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/daas-playground/internal/domain"
	"github.com/totegamma/daas-playground/internal/present/rest/presenter"
	"github.com/totegamma/daas-playground/internal/service"
)

var tracer = otel.Tracer("author")

// AuthorMiddleware resolves the request author through the configured
// extractor and stores it on the request context. Requests without a
// resolvable author are rejected before the handler runs.
type AuthorMiddleware struct {
	extractor service.AuthorExtractor
}

func NewAuthorMiddleware(extractor service.AuthorExtractor) *AuthorMiddleware {
	return &AuthorMiddleware{extractor: extractor}
}

func (m *AuthorMiddleware) IdentifyAuthor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Author.Middleware.IdentifyAuthor")
		defer span.End()

		author, err := m.extractor.Extract(c)
		if err != nil {
			span.RecordError(err)
			return presenter.Unauthorized(c, domain.ErrMissingAuthor.Error())
		}

		span.SetAttributes(attribute.String("Author", author))
		ctx = context.WithValue(ctx, domain.AuthorCtxKey, author)

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
