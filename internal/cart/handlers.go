package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/session"
)

// Handler exposes cart sessions over HTTP. It is the presentation layer's
// adapter: it turns requests into store intents and renders snapshots as JSON.
type Handler struct {
	Registry *Registry
	Intents  Intents
	Validate *validator.Validate
}

// NewHandler wires a handler with the default intent table and validator.
func NewHandler(registry *Registry) *Handler {
	return &Handler{Registry: registry, Intents: DefaultIntents(), Validate: validator.New()}
}

type addItemRequest struct {
	Name  string   `json:"name" validate:"required"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

type adjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// Get returns the current cart snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, store.Snapshot())
}

// AddItem adds an item with quantity 1.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.AddItem(r.Context(), payload.Name, *payload.Price); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, store.Snapshot())
}

// AdjustItem changes an item's quantity by delta.
func (h *Handler) AdjustItem(w http.ResponseWriter, r *http.Request) {
	var payload adjustRequest
	if !h.decode(w, r, &payload) {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.AdjustQuantity(r.Context(), itemName(r), payload.Delta)
	common.Data(w, http.StatusOK, store.Snapshot())
}

// RemoveItem deletes an item from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.RemoveItem(r.Context(), itemName(r))
	common.Data(w, http.StatusOK, store.Snapshot())
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.Clear(r.Context())
	common.Data(w, http.StatusOK, store.Snapshot())
}

// Confirm confirms the order and returns the receipt.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	conf, err := store.ConfirmOrder(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, Result{Snapshot: store.Snapshot(), Confirmation: &conf})
}

// Event dispatches a UI event through the intent table.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	var ev UIEvent
	if !h.decode(w, r, &ev) {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	intents := h.Intents
	if intents == nil {
		intents = DefaultIntents()
	}
	result, err := intents.Dispatch(r.Context(), store, ev)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart registry not configured", nil)
		return nil, false
	}
	id, _ := session.FromContext(r.Context())
	store, err := h.Registry.Store(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return store, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return false
	}
	if h.Validate == nil {
		return true
	}
	if err := h.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[lowerFirst(fe.Field())] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, "INVALID_ITEM", "validation failed", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if appErr, ok := common.AsAppError(err); ok {
		common.WriteAppError(w, appErr)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidItem):
		common.JSONError(w, http.StatusBadRequest, "INVALID_ITEM", err.Error(), nil)
	case errors.Is(err, ErrUnknownEvent):
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_EVENT", err.Error(), nil)
	case errors.Is(err, ErrNoSession):
		common.JSONError(w, http.StatusBadRequest, "NO_SESSION", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, ErrPersistedData):
		common.JSONError(w, http.StatusUnprocessableEntity, "PERSISTED_DATA", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func itemName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
