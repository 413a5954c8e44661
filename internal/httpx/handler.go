package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/auth"
	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/market"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/session"
)

type ctxKey struct{}

type Handler struct {
	App    *market.App
	Issuer *auth.Issuer
	Hub    *notify.Hub
	Logger *logrus.Logger
}

type loginResp struct {
	Token string      `json:"token"`
	User  orders.User `json:"user"`
}

type locationReq struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Denied bool    `json:"denied"`
}

type placeOrderReq struct {
	ProductID string `json:"productId"`
}

type statusReq struct {
	Status orders.Status `json:"status"`
}

type settingsResp struct {
	User            orders.User `json:"user"`
	ProductsUpdated int         `json:"productsUpdated"`
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/ws", h.serveWS)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/session", h.login)
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Get("/session", h.currentUser)
			r.Delete("/session", h.logout)
			r.Put("/session/location", h.locate)
			r.Put("/store/settings", h.updateSettings)
			r.Get("/products", h.listProducts)
			r.Post("/products", h.addProduct)
			r.Put("/products/{id}", h.updateProduct)
			r.Post("/orders", h.placeOrder)
			r.Get("/orders", h.listOrders)
			r.Patch("/orders/{id}/status", h.updateStatus)
			r.Get("/dashboard", h.dashboard)
			r.Get("/notifications", h.notifications)
		})
	})
}

func bearer(r *http.Request) string {
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimPrefix(v, "Bearer ")
	}
	return ""
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, err := h.Issuer.Verify(bearer(r))
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sid)))
	})
}

func sessionID(r *http.Request) string {
	sid, _ := r.Context().Value(ctxKey{}).(string)
	return sid
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return false
	}
	return true
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if !decode(w, r, &creds) {
		return
	}
	sid, token, err := h.Issuer.NewSession()
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	u, err := h.App.Login(r.Context(), sid, creds)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, loginResp{Token: token, User: u})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.App.CurrentUser(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.App.Logout(r.Context(), sessionID(r)); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) locate(w http.ResponseWriter, r *http.Request) {
	var req locationReq
	if !decode(w, r, &req) {
		return
	}
	u, err := h.App.Locate(r.Context(), sessionID(r), session.Fixed{Lat: req.Lat, Lng: req.Lng, Denied: req.Denied})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var s market.Settings
	if !decode(w, r, &s) {
		return
	}
	u, n, err := h.App.UpdateSettings(r.Context(), sessionID(r), s)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResp{User: u, ProductsUpdated: n})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f := catalog.Filter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	view, err := h.App.Catalog(r.Context(), sessionID(r), f)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	var p orders.Product
	if !decode(w, r, &p) {
		return
	}
	p, err := h.App.AddProduct(r.Context(), sessionID(r), p)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p orders.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	p, err := h.App.UpdateProduct(r.Context(), sessionID(r), p)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing productId"})
		return
	}
	o, err := h.App.PlaceOrder(r.Context(), sessionID(r), req.ProductID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	view, err := h.App.CustomerOrders(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decode(w, r, &req) {
		return
	}
	o, err := h.App.UpdateOrderStatus(r.Context(), sessionID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.App.MerchantDashboard(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.App.Notifications(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// serveWS accepts the token in the Authorization header or, for browsers,
// the token query parameter.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	sid, err := h.Issuer.Verify(token)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	u, err := h.App.CurrentUser(r.Context(), sid)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Hub.Serve(w, r, u.ID)
}
