package service

import (
	"encoding/base64"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/daas-playground/internal/domain"
)

// AuthorExtractor resolves the author of an inbound request. Concrete
// resolvers are supplied by the surrounding framework layer; the
// ingestion path depends only on this interface.
type AuthorExtractor interface {
	Extract(c echo.Context) (string, error)
}

// DefaultAuthor attributes every request to a fixed author name.
type DefaultAuthor struct {
	name string
}

func NewDefaultAuthor(name string) *DefaultAuthor {
	return &DefaultAuthor{name: name}
}

func (a *DefaultAuthor) Extract(c echo.Context) (string, error) {
	if a.name == "" {
		return "", domain.ErrMissingAuthor
	}
	return a.name, nil
}

// Base64Author resolves the author from a Basic authorization header,
// taking the user part of the decoded user:password pair. It performs no
// credential verification; authentication policy belongs to the
// surrounding layer.
type Base64Author struct{}

func NewBase64Author() *Base64Author {
	return &Base64Author{}
}

func (a *Base64Author) Extract(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", domain.ErrMissingAuthor
	}

	encoded := strings.TrimPrefix(header, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", domain.ErrMissingAuthor
	}

	author, _, _ := strings.Cut(string(decoded), ":")
	if author == "" {
		return "", domain.ErrMissingAuthor
	}
	return author, nil
}
