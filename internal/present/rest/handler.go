package rest

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	daas "github.com/totegamma/daas-playground"
	"github.com/totegamma/daas-playground/internal/domain"
	"github.com/totegamma/daas-playground/internal/present/rest/middleware"
	"github.com/totegamma/daas-playground/internal/present/rest/presenter"
	"github.com/totegamma/daas-playground/internal/usecase"
)

type Handler struct {
	ingest *usecase.IngestUsecase
	author *middleware.AuthorMiddleware
}

func NewHandler(
	ingest *usecase.IngestUsecase,
	author *middleware.AuthorMiddleware,
) *Handler {
	return &Handler{
		ingest: ingest,
		author: author,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)
	e.POST("/:category/:subcategory/:source_name/:source_uid", h.handleIngest, h.author.IdentifyAuthor)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.Health(c)
}

func (h *Handler) handleIngest(c echo.Context) error {
	ctx := c.Request().Context()

	sourceUID, err := strconv.ParseUint(c.Param("source_uid"), 10, 64)
	if err != nil {
		return presenter.BadRequest(c, "source_uid must be an unsigned integer")
	}

	author, ok := ctx.Value(domain.AuthorCtxKey).(string)
	if !ok || author == "" {
		return presenter.Unauthorized(c, domain.ErrMissingAuthor.Error())
	}

	agreements, err := parseAgreements(c.Request().Header.Get(domain.UsageAgreementHeader))
	if err != nil {
		return presenter.BadRequest(c, "malformed usage agreement header")
	}

	category := c.Param("category")
	subcategory := c.Param("subcategory")
	sourceName := c.Param("source_name")

	tracker, err := parseTracker(
		c.Request().Header.Get(domain.ProvenanceChainHeader),
		daas.MakeID(category, subcategory, sourceName, uint(sourceUID)),
	)
	if err != nil {
		return presenter.BadRequest(c, "malformed provenance chain header")
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return presenter.BadRequest(c, "could not read the request body")
	}

	input := usecase.IngestInput{
		Category:    category,
		Subcategory: subcategory,
		SourceName:  sourceName,
		SourceUID:   uint(sourceUID),
		Author:      author,
		Agreements:  agreements,
		Tracker:     tracker,
		ContentType: c.Request().Header.Get(echo.HeaderContentType),
		Payload:     payload,
	}

	if _, err := h.ingest.Receive(ctx, input); err != nil {
		slog.Warn("rejected an inbound document",
			slog.String("error", err.Error()),
			slog.String("module", "rest"),
		)
		return presenter.Unprocessable(c)
	}

	return presenter.OK(c)
}

func parseAgreements(header string) ([]daas.UsageAgreement, error) {
	if header == "" {
		return nil, nil
	}
	var agreements []daas.UsageAgreement
	if err := json.Unmarshal([]byte(header), &agreements); err != nil {
		return nil, err
	}
	return agreements, nil
}

// parseTracker decodes the provenance-chain token, or mints a fresh
// chain for the identity when the header is absent.
func parseTracker(header, dataID string) (daas.ProvenanceChain, error) {
	if header == "" {
		return daas.NewProvenanceChain(dataID), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return daas.ProvenanceChain{}, err
	}

	var tracker daas.ProvenanceChain
	if err := json.Unmarshal(decoded, &tracker); err != nil {
		return daas.ProvenanceChain{}, err
	}
	return tracker, nil
}
