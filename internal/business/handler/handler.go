package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bizreg/internal/business/analysis"
	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/internal/business/service"
	"bizreg/pkg/platform/httputil"
	"bizreg/pkg/requestcontext"
)

// Service is the business service as seen by HTTP handlers.
type Service interface {
	Create(ctx context.Context, reg models.Registration) (*models.BusinessRecord, error)
	Get(ctx context.Context, id string) (*models.BusinessRecord, error)
	GetByControlNumber(ctx context.Context, controlNumber string) (*models.BusinessRecord, error)
	Update(ctx context.Context, id string, reg models.Registration, controlNumber string) (*models.BusinessRecord, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*models.BusinessRecord, error)
	Search(ctx context.Context, params query.ListParams) (*service.SearchResult, error)
	SearchByName(ctx context.Context, name string, exact bool) ([]*models.BusinessRecord, error)
	SearchByAddress(ctx context.Context, address string, exact bool) ([]*models.BusinessRecord, error)
	ByYear(ctx context.Context, year, status string) (*analysis.YearReport, error)
	Dashboard(ctx context.Context) (*analysis.Dashboard, error)
	Location() *time.Location
}

// Handler serves the registration and admin analysis endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the business endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/businesses", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleListAll)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
	r.Route("/api/admin/analysis", func(r chi.Router) {
		r.Get("/businesses", h.HandleSearch)
		r.Get("/by-year/{year}", h.HandleByYear)
		r.Get("/control-number/{controlNumber}", h.HandleByControlNumber)
		r.Get("/search/name", h.HandleSearchByName)
		r.Get("/search/address", h.HandleSearchByAddress)
		r.Get("/dashboard", h.HandleDashboard)
	})
}

// HandleCreate handles POST /api/businesses.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BusinessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, err := h.service.Create(ctx, req.Registration())
	if err != nil {
		h.fail(ctx, w, "business registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// HandleListAll handles GET /api/businesses.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.ListAll(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "list businesses failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(recs))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(r.Context(), w, "get business failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleUpdate handles PUT /api/businesses/{id}. The body carries the full
// set of editable fields.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BusinessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, err := h.service.Update(ctx, chi.URLParam(r, "id"), req.Registration(), req.ControlNumber)
	if err != nil {
		h.fail(ctx, w, "update business failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(r.Context(), w, "delete business failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Business deleted successfully"})
}

// HandleSearch handles GET /api/admin/analysis/businesses.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := query.Parse(r.URL.Query(), h.service.Location())
	if err != nil {
		h.fail(ctx, w, "invalid search parameters", err)
		return
	}
	res, err := h.service.Search(ctx, params)
	if err != nil {
		h.fail(ctx, w, "search businesses failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{
		Success:    true,
		Data:       nonNil(res.Records),
		Pagination: res.PageInfo,
	})
}

func (h *Handler) HandleByYear(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ByYear(r.Context(), chi.URLParam(r, "year"), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(r.Context(), w, "year report failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toYearResponse(report))
}

func (h *Handler) HandleByControlNumber(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetByControlNumber(r.Context(), chi.URLParam(r, "controlNumber"))
	if err != nil {
		h.fail(r.Context(), w, "control number lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &RecordResponse{Success: true, Data: rec})
}

func (h *Handler) HandleSearchByName(w http.ResponseWriter, r *http.Request) {
	h.fieldSearch(w, r, "name", h.service.SearchByName)
}

func (h *Handler) HandleSearchByAddress(w http.ResponseWriter, r *http.Request) {
	h.fieldSearch(w, r, "address", h.service.SearchByAddress)
}

func (h *Handler) fieldSearch(
	w http.ResponseWriter,
	r *http.Request,
	param string,
	search func(ctx context.Context, value string, exact bool) ([]*models.BusinessRecord, error),
) {
	ctx := r.Context()
	values := r.URL.Query()
	exact, err := query.ParseExactMatch(values)
	if err != nil {
		h.fail(ctx, w, "invalid search parameters", err)
		return
	}
	recs, err := search(ctx, values.Get(param), exact)
	if err != nil {
		h.fail(ctx, w, param+" search failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSearchResponse(recs))
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "dashboard failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &DashboardResponse{Success: true, Data: d})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
