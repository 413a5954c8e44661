package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/burelanicolas23/24seven/internal/auth"
	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/kv"
	"github.com/burelanicolas23/24seven/internal/logging"
	"github.com/burelanicolas23/24seven/internal/market"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/session"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logging.Discard()
	mem := kv.NewMemory()
	cat := catalog.New(mem, log)
	if _, err := cat.SeedIfEmpty(ctx, catalog.DemoProducts()); err != nil {
		t.Fatal(err)
	}
	hub := notify.NewHub("test", log)
	go hub.Run(ctx)

	app := market.New(market.Deps{
		Sessions: session.NewStore(mem, log),
		Catalog:  cat,
		Ledger:   orders.NewMemoryLedger(),
		Center:   notify.NewCenter(notify.Options{Cap: 3, TTL: 8 * time.Second}, hub, log),
		Sink:     hub,
		Logger:   log,
	})
	r := NewRouter(log)
	(&Handler{App: app, Issuer: auth.NewIssuer("test", time.Hour), Hub: hub, Logger: log}).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, srv *httptest.Server, role orders.Role) (string, orders.User) {
	t.Helper()
	var resp loginResp
	code := call(t, srv, http.MethodPost, "/session", "", session.Credentials{Role: role}, &resp)
	if code != http.StatusCreated || resp.Token == "" {
		t.Fatalf("login: %d %+v", code, resp)
	}
	return resp.Token, resp.User
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newServer(t)

	if code := call(t, srv, http.MethodGet, "/session", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/session", "", session.Credentials{Role: "ADMIN"}, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("bad role: %d", code)
	}

	token, u := login(t, srv, orders.RoleMerchant)
	if u.StoreName != session.DefaultStoreName {
		t.Fatalf("user = %+v", u)
	}
	var got orders.User
	if code := call(t, srv, http.MethodGet, "/session", token, nil, &got); code != http.StatusOK || got.ID != u.ID {
		t.Fatalf("current: %d %+v", code, got)
	}
	if code := call(t, srv, http.MethodDelete, "/session", token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("logout: %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/session", token, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("after logout: %d", code)
	}
}

func TestOrderFlowOverHTTP(t *testing.T) {
	srv := newServer(t)
	mToken, _ := login(t, srv, orders.RoleMerchant)
	cToken, _ := login(t, srv, orders.RoleCustomer)

	var p orders.Product
	code := call(t, srv, http.MethodPost, "/products", mToken,
		map[string]any{"name": "Tortilla", "price": "6.5", "stock": 1, "category": "Food"}, &p)
	if code != http.StatusCreated {
		t.Fatalf("add product: %d", code)
	}

	var view market.CatalogView
	if code := call(t, srv, http.MethodGet, "/products?q=TORT", cToken, nil, &view); code != http.StatusOK || len(view.Products) != 1 {
		t.Fatalf("catalog: %d %+v", code, view)
	}

	var o orders.Order
	if code := call(t, srv, http.MethodPost, "/orders", cToken, placeOrderReq{ProductID: p.ID}, &o); code != http.StatusCreated {
		t.Fatalf("place: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/orders", cToken, placeOrderReq{ProductID: p.ID}, nil); code != http.StatusConflict {
		t.Fatalf("out of stock: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/orders", mToken, placeOrderReq{ProductID: p.ID}, nil); code != http.StatusForbidden {
		t.Fatalf("merchant ordering: %d", code)
	}

	path := fmt.Sprintf("/orders/%s/status", o.ID)
	if code := call(t, srv, http.MethodPatch, path, mToken, statusReq{Status: orders.StatusReady}, nil); code != http.StatusConflict {
		t.Fatalf("skip to ready: %d", code)
	}
	var accepted orders.Order
	if code := call(t, srv, http.MethodPatch, path, mToken, statusReq{Status: orders.StatusAccepted}, &accepted); code != http.StatusOK || accepted.Status != orders.StatusAccepted {
		t.Fatalf("accept: %d %+v", code, accepted)
	}
	if code := call(t, srv, http.MethodPatch, "/orders/nope/status", mToken, statusReq{Status: orders.StatusAccepted}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown order: %d", code)
	}

	var mine market.CustomerOrders
	if code := call(t, srv, http.MethodGet, "/orders", cToken, nil, &mine); code != http.StatusOK || len(mine.Active) != 1 {
		t.Fatalf("orders: %d %+v", code, mine)
	}
	var notes []notify.Notification
	if code := call(t, srv, http.MethodGet, "/notifications", cToken, nil, &notes); code != http.StatusOK || len(notes) != 1 {
		t.Fatalf("notifications: %d %+v", code, notes)
	}

	var dash market.Dashboard
	if code := call(t, srv, http.MethodGet, "/dashboard", mToken, nil, &dash); code != http.StatusOK || dash.PendingCount != 1 {
		t.Fatalf("dashboard: %d %+v", code, dash)
	}
}

func TestSettingsOverHTTP(t *testing.T) {
	srv := newServer(t)
	mToken, _ := login(t, srv, orders.RoleMerchant)

	bad := market.Settings{StoreName: "S", OpeningTime: "9", ClosingTime: "22:00", Currency: "€"}
	var body errorBody
	if code := call(t, srv, http.MethodPut, "/store/settings", mToken, bad, &body); code != http.StatusUnprocessableEntity || body.Field != "openingTime" {
		t.Fatalf("bad settings: %d %+v", code, body)
	}

	good := market.Settings{StoreName: "S", OpeningTime: "09:00", ClosingTime: "22:00", Currency: "£"}
	var resp settingsResp
	if code := call(t, srv, http.MethodPut, "/store/settings", mToken, good, &resp); code != http.StatusOK || resp.User.Currency != "£" {
		t.Fatalf("settings: %d %+v", code, resp)
	}

	var u orders.User
	if code := call(t, srv, http.MethodPut, "/session/location", mToken, locationReq{Denied: true}, &u); code != http.StatusOK || u.Lat != nil {
		t.Fatalf("denied location: %d %+v", code, u)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{market.ErrUnauthenticated, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{fmt.Errorf("x: %w", market.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", orders.ErrNotFound), http.StatusNotFound},
		{&orders.ValidationError{Field: "stock", Err: orders.ErrOutOfStock}, http.StatusConflict},
		{orders.Invalid("name", "required"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWebSocketReceivesNotifications(t *testing.T) {
	srv := newServer(t)
	mToken, _ := login(t, srv, orders.RoleMerchant)
	cToken, _ := login(t, srv, orders.RoleCustomer)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + cToken
	if _, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil); err == nil {
		t.Fatal("dial without token should fail")
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var p orders.Product
	call(t, srv, http.MethodPost, "/products", mToken, map[string]any{"name": "Tea", "price": "1", "stock": 5}, &p)
	var o orders.Order
	call(t, srv, http.MethodPost, "/orders", cToken, placeOrderReq{ProductID: p.ID}, &o)
	call(t, srv, http.MethodPatch, "/orders/"+o.ID+"/status", mToken, statusReq{Status: orders.StatusAccepted}, nil)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg notify.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type == notify.TypeNotification {
			return
		}
	}
}
