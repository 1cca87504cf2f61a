package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"itemservice/internal/domain/item"
	"itemservice/internal/processing"
	"itemservice/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const itemNotFound = "Item not found."

type (
	itemLister interface {
		Execute(ctx context.Context) ([]*item.Item, error)
	}
	itemGetter interface {
		Execute(ctx context.Context, id string) (*item.Item, error)
	}
	itemCreator interface {
		Execute(ctx context.Context, params usecase.ItemParams) (*item.Item, error)
	}
	itemUpdater interface {
		Execute(ctx context.Context, id string, params usecase.ItemParams) (*item.Item, error)
	}
	itemDeleter interface {
		Execute(ctx context.Context, id string) error
	}
	itemProcessor interface {
		Execute(ctx context.Context) (*processing.Result, error)
	}
)

type Handlers struct {
	listItemsUC   itemLister
	getItemUC     itemGetter
	createItemUC  itemCreator
	updateItemUC  itemUpdater
	deleteItemUC  itemDeleter
	processItemUC itemProcessor
	logger        *slog.Logger
}

func NewHandlers(
	listItemsUC itemLister,
	getItemUC itemGetter,
	createItemUC itemCreator,
	updateItemUC itemUpdater,
	deleteItemUC itemDeleter,
	processItemUC itemProcessor,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		listItemsUC:   listItemsUC,
		getItemUC:     getItemUC,
		createItemUC:  createItemUC,
		updateItemUC:  updateItemUC,
		deleteItemUC:  deleteItemUC,
		processItemUC: processItemUC,
		logger:        logger,
	}
}

func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.listItemsUC.Execute(r.Context())
	if err != nil {
		h.internalError(w, r, "list items", err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeItem(w, r)
	if !ok {
		return
	}

	created, err := h.createItemUC.Execute(r.Context(), req.params())
	if err != nil {
		h.internalError(w, r, "create item", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	it, err := h.getItemUC.Execute(r.Context(), id)
	if err != nil {
		if errors.Is(err, item.ErrNotFound) {
			http.Error(w, itemNotFound, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "get item", err)
		return
	}

	writeJSON(w, http.StatusOK, it)
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, ok := decodeItem(w, r)
	if !ok {
		return
	}

	updated, err := h.updateItemUC.Execute(r.Context(), id, req.params())
	if err != nil {
		if errors.Is(err, item.ErrNotFound) {
			http.Error(w, itemNotFound, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "update item", err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.deleteItemUC.Execute(r.Context(), id); err != nil {
		if errors.Is(err, item.ErrNotFound) {
			http.Error(w, itemNotFound, http.StatusNotFound)
			return
		}
		h.internalError(w, r, "delete item", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProcessItems answers 200 with the processed items, or 500 when the batch
// as a whole failed. Items that failed individually are only counted in the
// X-Items-Failed header.
func (h *Handlers) ProcessItems(w http.ResponseWriter, r *http.Request) {
	res, err := h.processItemUC.Execute(r.Context())
	if err != nil {
		h.internalError(w, r, "process items", err)
		return
	}

	w.Header().Set("X-Items-Failed", strconv.Itoa(res.Failed()))
	writeJSON(w, http.StatusOK, res.Items)
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "request failed", "op", op, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func decodeItem(w http.ResponseWriter, r *http.Request) (itemRequest, bool) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if err := validateItem(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (req itemRequest) params() usecase.ItemParams {
	return usecase.ItemParams{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Email:       req.Email,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
