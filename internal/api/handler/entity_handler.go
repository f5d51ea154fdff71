package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orgdesk/admin-api/internal/api/metrics"
	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// HeaderIdempotencyKey lets clients retry create without inserting twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// EntityHandler serves the generic CRUD routes of one catalog entity.
type EntityHandler struct {
	entity  *domain.Entity
	service ports.EntityService
}

func NewEntityHandler(entity *domain.Entity, service ports.EntityService) *EntityHandler {
	return &EntityHandler{entity: entity, service: service}
}

type createdResponse struct {
	ID string `json:"id"`
}

type listResponse struct {
	Data []domain.Record `json:"data"`
}

type recordResponse struct {
	Data recordWithLogs `json:"data"`
}

type recordWithLogs map[string]any

// Create inserts a record and its create log entry.
//
// @Summary      Create a record
// @Tags         entities
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        entity           path      string  true   "Entity name"
// @Param        Idempotency-Key  header    string  false  "Replays the first id for a retried request"
// @Param        body             body      object  true   "{data: {...}}"
// @Success      200              {object}  createdResponse
// @Failure      400
// @Failure      401              {object}  map[string]string
// @Failure      403              {object}  map[string]string
// @Failure      500              {object}  map[string]string
// @Router       /{entity}/create [post]
func (h *EntityHandler) Create(c echo.Context) error {
	operator, err := operatorID(c)
	if err != nil {
		return err
	}

	env, err := bindEnvelope(c, h.entity)
	if err != nil {
		return err
	}

	id, err := h.service.Create(c.Request().Context(), h.entity, ports.CreateInput{
		Data:           env.Data,
		OperatorID:     operator,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	metrics.MutationsTotal.WithLabelValues(h.entity.Name, string(domain.LogCreate)).Inc()
	return c.JSON(http.StatusOK, createdResponse{ID: id})
}

// Update applies a partial patch to the record named by id.
//
// @Summary      Update a record
// @Tags         entities
// @Accept       json
// @Security     BearerAuth
// @Param        entity  path  string  true  "Entity name"
// @Param        body    body  object  true  "{id: \"...\", data: {...}}"
// @Success      200
// @Failure      400
// @Failure      401
// @Failure      500     {object}  map[string]string
// @Router       /{entity}/update [post]
func (h *EntityHandler) Update(c echo.Context) error {
	operator, err := operatorID(c)
	if err != nil {
		return err
	}

	env, err := bindEnvelope(c, h.entity)
	if err != nil {
		return err
	}

	err = h.service.Update(c.Request().Context(), h.entity, ports.UpdateInput{
		ID:         env.ID,
		Data:       env.Data,
		OperatorID: operator,
	})
	if err != nil {
		return err
	}

	metrics.MutationsTotal.WithLabelValues(h.entity.Name, string(domain.LogUpdate)).Inc()
	return c.NoContent(http.StatusOK)
}

// Get lists the records visible by default.
//
// @Summary      List records
// @Tags         entities
// @Produce      json
// @Security     BearerAuth
// @Param        entity  path      string  true  "Entity name"
// @Success      200     {object}  listResponse
// @Failure      400
// @Failure      401
// @Router       /{entity}/get [get]
func (h *EntityHandler) Get(c echo.Context) error {
	return h.list(c, "", false)
}

// Search lists records matching key or any date range.
//
// @Summary      Search records
// @Tags         entities
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        entity  path      string  true   "Entity name"
// @Param        key     query     string  false  "Equality match over the searchable fields"
// @Success      200     {object}  listResponse
// @Failure      400
// @Failure      401
// @Router       /{entity}/search [post]
func (h *EntityHandler) Search(c echo.Context) error {
	return h.list(c, "", true)
}

// View returns the handler for one of the entity's extra list views.
func (h *EntityHandler) View(v domain.View) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.list(c, v.Name, v.Search)
	}
}

func (h *EntityHandler) list(c echo.Context, view string, search bool) error {
	env, err := bindEnvelope(c, h.entity)
	if err != nil {
		return err
	}

	in := ports.ListInput{View: view, Key: env.Key, Ranges: env.Ranges}

	var recs []domain.Record
	if search {
		recs, err = h.service.Search(c.Request().Context(), h.entity, in)
	} else {
		recs, err = h.service.Get(c.Request().Context(), h.entity, in)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, listResponse{Data: recs})
}

// Select fetches one record by id, whatever its status, with its audit trail.
//
// @Summary      Select a record
// @Tags         entities
// @Produce      json
// @Security     BearerAuth
// @Param        entity  path      string  true  "Entity name"
// @Param        id      query     string  true  "Record id"
// @Success      200     {object}  recordResponse
// @Failure      400
// @Failure      401
// @Router       /{entity}/select [get]
func (h *EntityHandler) Select(c echo.Context) error {
	env, err := bindEnvelope(c, h.entity)
	if err != nil {
		return err
	}

	detail, err := h.service.Select(c.Request().Context(), h.entity, env.ID)
	if err != nil {
		return err
	}

	data := recordWithLogs(detail.Record)
	data["logs"] = detail.Logs
	return c.JSON(http.StatusOK, recordResponse{Data: data})
}
