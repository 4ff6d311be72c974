package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/catalog"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/service"
)

const maxBatchIDs = 100

// Catalog is the read side of the product source the handlers need.
type Catalog interface {
	repository.ProductTable
	repository.ProductLookup
}

type Handler struct {
	source   service.ProductSource
	catalog  Catalog
	sessions *service.SessionService
	prices   service.PriceHistoryService
	alerts   service.AlertService
	search   service.QueryCoordinatorConfig
	log      logger.Logger
	metrics  *metrics.MetricsManager
}

func NewHandler(
	source service.ProductSource,
	catalog Catalog,
	sessions *service.SessionService,
	prices service.PriceHistoryService,
	alerts service.AlertService,
	search service.QueryCoordinatorConfig,
	log logger.Logger,
	m *metrics.MetricsManager,
) *Handler {
	return &Handler{
		source:   source,
		catalog:  catalog,
		sessions: sessions,
		prices:   prices,
		alerts:   alerts,
		search:   search,
		log:      log,
		metrics:  m,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain and repository errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidFilter),
		errors.Is(err, entity.ErrInvalidQuantity),
		errors.Is(err, entity.ErrEmptyProductID),
		errors.Is(err, entity.ErrInvalidProduct),
		errors.Is(err, entity.ErrInvalidTargetPrice):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAlertNotOwned):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrSourceTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s failed: %v", op, err)
		writeError(w, status, http.StatusText(status))
		return
	}
	h.log.Debugf("%s rejected: %v", op, err)
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseBound(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", entity.ErrInvalidFilter, key)
	}
	return &v, nil
}

// ParseFilterQuery builds a filter configuration from URL query parameters.
// Absent parameters keep their defaults; marketplaces lists the enabled ones.
func ParseFilterQuery(values url.Values) (entity.FilterConfig, error) {
	f := entity.DefaultFilterConfig()
	f.Query = values.Get("q")

	var err error
	if f.MinPrice, err = parseBound(values, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parseBound(values, "maxPrice"); err != nil {
		return f, err
	}

	if raw, ok := values["marketplaces"]; ok {
		for m := range f.Marketplaces {
			f.Marketplaces[m] = false
		}
		for _, item := range raw {
			for _, part := range strings.Split(item, ",") {
				if strings.TrimSpace(part) == "" {
					continue
				}
				m, err := entity.ParseMarketplace(part)
				if err != nil {
					return f, err
				}
				f.Marketplaces[m] = true
			}
		}
	}
	if v := values.Get("condition"); v != "" {
		f.Condition = v
	}
	if v := values.Get("category"); v != "" {
		f.Category = v
	}
	if v := values.Get("sortBy"); v != "" {
		f.SortBy = entity.SortKey(v)
	}
	return f, f.Validate()
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilterQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, "SearchProducts", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.fetchTimeout())
	defer cancel()

	started := time.Now()
	result, err := h.source.Fetch(ctx, filters)
	h.metrics.ObserveFetch(h.source.Name(), started)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.metrics.FetchFailed("timeout")
			h.fail(w, r, "SearchProducts", fmt.Errorf("%w: %v", service.ErrSourceTimeout, err))
			return
		}
		h.metrics.FetchFailed("error")
		if status := statusFor(err); status < http.StatusInternalServerError {
			h.fail(w, r, "SearchProducts", err)
			return
		}
		h.log.Errorf("SearchProducts failed: %v", err)
		writeError(w, http.StatusBadGateway, "product source unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": result.Products,
		"total":    result.Total,
		"filters":  filters,
	})
}

func (h *Handler) fetchTimeout() time.Duration {
	if h.search.FetchTimeout > 0 {
		return h.search.FetchTimeout
	}
	return 10 * time.Second
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "GetProduct", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) BatchProducts(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) > maxBatchIDs {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d ids per request", maxBatchIDs))
		return
	}
	products, err := h.catalog.FindByIDs(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, "BatchProducts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "PriceHistory", err)
		return
	}
	series := h.prices.ForProduct(r.Context(), *p)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"productId": p.ID,
		"points":    series.Points,
		"synthetic": series.Synthetic,
		"trend":     h.prices.Trend(series, p.Price),
	})
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, "Categories", err)
		return
	}
	lo, hi := catalog.PriceRange(products)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": catalog.Categories(products),
		"minPrice":   lo,
		"maxPrice":   hi,
	})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionFrom(r.Context()).Cart().View())
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity,omitempty"`
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProductID == "" {
		h.fail(w, r, "AddToCart", entity.ErrEmptyProductID)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	p, err := h.catalog.FindByID(r.Context(), req.ProductID)
	if err != nil {
		h.fail(w, r, "AddToCart", err)
		return
	}
	cart := SessionFrom(r.Context()).Cart()
	if err := cart.AddToCart(r.Context(), *p, qty); err != nil {
		h.fail(w, r, "AddToCart", err)
		return
	}
	writeJSON(w, http.StatusOK, cart.View())
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cart := SessionFrom(r.Context()).Cart()
	cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	writeJSON(w, http.StatusOK, cart.View())
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart := SessionFrom(r.Context()).Cart()
	cart.RemoveFromCart(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, cart.View())
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart := SessionFrom(r.Context()).Cart()
	cart.ClearCart(r.Context())
	writeJSON(w, http.StatusOK, cart.View())
}

type favoritesResponse struct {
	Mode string   `json:"mode"`
	IDs  []string `json:"ids"`
}

func favoritesView(f service.FavoritesService) favoritesResponse {
	return favoritesResponse{Mode: string(f.Mode()), IDs: f.IDs()}
}

func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	favs := SessionFrom(r.Context()).Favorites()
	if r.URL.Query().Get("refresh") == "true" {
		if err := favs.Refetch(r.Context()); err != nil {
			h.log.Warnf("Favorites refetch failed: %v", err)
			writeError(w, http.StatusBadGateway, "favorites store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, favoritesView(favs))
}

// favoriteFailure reports remote store failures as 502; the local change has been reverted.
func (h *Handler) favoriteFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status := statusFor(err); status < http.StatusInternalServerError {
		h.fail(w, r, op, err)
		return
	}
	h.log.Warnf("%s failed: %v", op, err)
	writeError(w, http.StatusBadGateway, "favorites store unavailable")
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favs := SessionFrom(r.Context()).Favorites()
	on, err := favs.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.favoriteFailure(w, r, "ToggleFavorite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorite": on, "ids": favs.IDs()})
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	favs := SessionFrom(r.Context()).Favorites()
	if err := favs.AddToFavorites(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.favoriteFailure(w, r, "AddFavorite", err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesView(favs))
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	favs := SessionFrom(r.Context()).Favorites()
	if err := favs.RemoveFromFavorites(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.favoriteFailure(w, r, "RemoveFavorite", err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesView(favs))
}

type createAlertRequest struct {
	ProductID   string  `json:"productId"`
	TargetPrice float64 `json:"targetPrice"`
}

func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProductID == "" {
		h.fail(w, r, "CreateAlert", entity.ErrEmptyProductID)
		return
	}
	p, err := h.catalog.FindByID(r.Context(), req.ProductID)
	if err != nil {
		h.fail(w, r, "CreateAlert", err)
		return
	}
	alert, err := h.alerts.Create(r.Context(), IdentityFrom(r.Context()), *p, req.TargetPrice)
	if err != nil {
		h.fail(w, r, "CreateAlert", err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.List(r.Context(), IdentityFrom(r.Context()).UserID)
	if err != nil {
		h.fail(w, r, "ListAlerts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.alerts.Delete(r.Context(), IdentityFrom(r.Context()).UserID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "DeleteAlert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
