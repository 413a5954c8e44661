package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"

	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/kv"
	"github.com/burelanicolas23/24seven/internal/logging"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/session"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu    sync.Mutex
	types map[string]int
}

func (r *recordingSink) SendTo(_, messageType string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		r.types = map[string]int{}
	}
	r.types[messageType]++
}

func (r *recordingSink) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.types[typ]
}

type fixture struct {
	app     *App
	pub     *orders.MockPublisher
	sink    *recordingSink
	catalog *catalog.Catalog
	ledger  orders.Ledger
	now     time.Time
}

func newFixture(t *testing.T, ledger orders.Ledger) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logging.Discard()
	mem := kv.NewMemory()
	cat := catalog.New(mem, log)
	if _, err := cat.SeedIfEmpty(context.Background(), catalog.DemoProducts()); err != nil {
		t.Fatal(err)
	}
	if ledger == nil {
		ledger = orders.NewMemoryLedger()
	}
	f := &fixture{
		pub:     orders.NewMockPublisher(ctrl),
		sink:    &recordingSink{},
		catalog: cat,
		ledger:  ledger,
		now:     t0,
	}
	f.app = New(Deps{
		Sessions:    session.NewStore(mem, log),
		Catalog:     cat,
		Ledger:      ledger,
		Publisher:   f.pub,
		Center:      notify.NewCenter(notify.Options{Cap: 3, TTL: 8 * time.Second}, f.sink, log),
		Sink:        f.sink,
		Logger:      log,
		ServiceName: "test",
		Now:         func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) login(t *testing.T, sid string, role orders.Role) orders.User {
	t.Helper()
	u, err := f.app.Login(context.Background(), sid, session.Credentials{Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) addProduct(t *testing.T, sid, name string, stock int) orders.Product {
	t.Helper()
	p, err := f.app.AddProduct(context.Background(), sid, orders.Product{
		Name:     name,
		Price:    decimal.RequireFromString("4.5"),
		Stock:    stock,
		Category: "Food",
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) expect(topic string, times int) {
	f.pub.EXPECT().Publish(gomock.Any(), topic, gomock.Any()).Return(nil).Times(times)
}

func TestPlaceOrderScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 1)

	o, err := f.app.PlaceOrder(ctx, "c", "1")
	if err != nil {
		t.Fatal(err)
	}
	if o.EstimatedMinutes != 7 || o.Status != orders.StatusPending || o.Type != orders.TypePickup {
		t.Fatalf("unexpected order %+v", o)
	}
	p, _ := f.catalog.Get(ctx, "1")
	if p.Stock != 49 {
		t.Fatalf("stock = %d, want 49", p.Stock)
	}
	view, err := f.app.CustomerOrders(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Active) != 1 || view.Active[0].RemainingMinutes != 7 || len(view.History) != 0 {
		t.Fatalf("view = %+v", view)
	}
}

func TestPlaceOrdersDecrementExactlyAndStopAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "m", orders.RoleMerchant)
	p := f.addProduct(t, "m", "Bagel", 3)
	f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 3)

	for i := 0; i < 3; i++ {
		if _, err := f.app.PlaceOrder(ctx, "c", p.ID); err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
	}
	_, err := f.app.PlaceOrder(ctx, "c", p.ID)
	var verr *orders.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, orders.ErrOutOfStock) {
		t.Fatalf("err = %v, want out-of-stock ValidationError", err)
	}
	got, _ := f.catalog.Get(ctx, p.ID)
	if got.Stock != 0 {
		t.Fatalf("stock = %d, want 0", got.Stock)
	}
	view, _ := f.app.CustomerOrders(ctx, "c")
	if len(view.Active) != 3 {
		t.Fatalf("orders = %d, want 3", len(view.Active))
	}
}

func TestPlaceOrderAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	if _, err := f.app.PlaceOrder(ctx, "nobody", "1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	f.login(t, "m", orders.RoleMerchant)
	if _, err := f.app.PlaceOrder(ctx, "m", "1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	f.login(t, "c", orders.RoleCustomer)
	if _, err := f.app.PlaceOrder(ctx, "c", "missing"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

type failingLedger struct {
	*orders.MemoryLedger
}

func (failingLedger) Append(context.Context, orders.Order) error {
	return errors.New("disk full")
}

func TestPlaceOrderRestoresStockWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingLedger{orders.NewMemoryLedger()})
	f.login(t, "c", orders.RoleCustomer)

	if _, err := f.app.PlaceOrder(ctx, "c", "1"); err == nil {
		t.Fatal("expected error")
	}
	p, _ := f.catalog.Get(ctx, "1")
	if p.Stock != 50 {
		t.Fatalf("stock = %d, want 50", p.Stock)
	}
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "c", orders.RoleCustomer)
	f.pub.EXPECT().Publish(gomock.Any(), orders.TopicOrderPlaced, gomock.Any()).Return(errors.New("broker down"))

	if _, err := f.app.PlaceOrder(context.Background(), "c", "1"); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestStatusTransitionsNotifyOncePerStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "m", orders.RoleMerchant)
	p := f.addProduct(t, "m", "Soup", 5)
	f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 1)
	f.expect(orders.TopicOrderStatusChanged, 2)

	o, err := f.app.PlaceOrder(ctx, "c", p.ID)
	if err != nil {
		t.Fatal(err)
	}

	// placing the order sent the merchant one pending notice
	merchantNotices := 1
	for i, to := range []orders.Status{orders.StatusAccepted, orders.StatusReady} {
		if _, err := f.app.UpdateOrderStatus(ctx, "m", o.ID, to); err != nil {
			t.Fatalf("%s: %v", to, err)
		}
		if got := f.sink.count(notify.TypeNotification) - merchantNotices; got != i+1 {
			t.Fatalf("after %s: %d customer notifications, want %d", to, got, i+1)
		}
	}
	visible, _ := f.app.Notifications(ctx, "c")
	if len(visible) != 1 || visible[0].ID != o.ID+"-READY" {
		t.Fatalf("visible = %+v", visible)
	}

	_, err = f.app.UpdateOrderStatus(ctx, "m", o.ID, orders.StatusPending)
	if !errors.Is(err, orders.ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}

	view, _ := f.app.CustomerOrders(ctx, "c")
	if len(view.Active) != 0 || len(view.History) != 1 {
		t.Fatalf("view = %+v", view)
	}
	if got := f.sink.count(notify.TypeNotification); got != 3 {
		t.Fatalf("re-reading orders fired again: %d", got)
	}
}

func TestUpdateOrderStatusRequiresOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "m", orders.RoleMerchant)
	p := f.addProduct(t, "m", "Soup", 5)
	f.login(t, "other", orders.RoleMerchant)
	f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 1)

	o, _ := f.app.PlaceOrder(ctx, "c", p.ID)
	if _, err := f.app.UpdateOrderStatus(ctx, "other", o.ID, orders.StatusAccepted); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.UpdateOrderStatus(ctx, "c", o.ID, orders.StatusAccepted); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestUpdateSettingsPropagatesToOwnProductsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "m", orders.RoleMerchant)
	a := f.addProduct(t, "m", "Soup", 5)
	b := f.addProduct(t, "m", "Salad", 5)
	f.expect(orders.TopicStoreSettingsUpdated, 1)

	u, n, err := f.app.UpdateSettings(ctx, "m", Settings{
		StoreName:    "Corner",
		OpeningTime:  "07:00",
		ClosingTime:  "13:00",
		OpeningTime2: "18:00",
		ClosingTime2: "01:00",
		Currency:     "$",
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || u.Currency != "$" {
		t.Fatalf("n = %d, user = %+v", n, u)
	}
	for _, id := range []string{a.ID, b.ID} {
		p, _ := f.catalog.Get(ctx, id)
		if p.Currency != "$" || p.MerchantName != "Corner" || p.MerchantClosing2 != "01:00" {
			t.Errorf("product %s not propagated: %+v", id, p)
		}
	}
	demo, _ := f.catalog.Get(ctx, "1")
	if demo.Currency != "€" {
		t.Fatalf("other merchant's product changed: %+v", demo)
	}
	current, _ := f.app.CurrentUser(ctx, "m")
	if current.StoreName != "Corner" {
		t.Fatalf("session user not rewritten: %+v", current)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "m", orders.RoleMerchant)
	valid := Settings{StoreName: "S", OpeningTime: "08:00", ClosingTime: "22:00", Currency: "€"}

	tests := []struct {
		name  string
		edit  func(*Settings)
		field string
	}{
		{"no name", func(s *Settings) { s.StoreName = "" }, "storeName"},
		{"bad open", func(s *Settings) { s.OpeningTime = "8am" }, "openingTime"},
		{"bad close", func(s *Settings) { s.ClosingTime = "25:00" }, "closingTime"},
		{"half shift", func(s *Settings) { s.OpeningTime2 = "18:00" }, "openingTime2"},
		{"currency", func(s *Settings) { s.Currency = "BTC" }, "currency"},
		{"negative prep", func(s *Settings) { v := -1; s.BasePrepTime = &v }, "basePrepTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.edit(&s)
			_, _, err := f.app.UpdateSettings(context.Background(), "m", s)
			var verr *orders.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("err = %v, want field %s", err, tt.field)
			}
		})
	}
}

type deniedLocator struct{}

func (deniedLocator) Locate(context.Context) (float64, float64, error) {
	return 0, 0, session.ErrPermissionDenied
}

func TestLocate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "m", orders.RoleMerchant)
	p := f.addProduct(t, "m", "Soup", 5)

	u, err := f.app.Locate(ctx, "m", deniedLocator{})
	if err != nil || u.Lat != nil {
		t.Fatalf("denied: %+v, %v", u, err)
	}

	u, err = f.app.Locate(ctx, "m", session.Fixed{Lat: 40.4, Lng: -3.7})
	if err != nil || u.Lat == nil || *u.Lat != 40.4 {
		t.Fatalf("located: %+v, %v", u, err)
	}
	got, _ := f.catalog.Get(ctx, p.ID)
	if got.MerchantLat == nil || *got.MerchantLng != -3.7 {
		t.Fatalf("coordinates not propagated: %+v", got)
	}
}

func TestMerchantDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.login(t, "m", orders.RoleMerchant)
	p := f.addProduct(t, "m", "Sourdough loaf", 4)
	f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 2)
	f.app.PlaceOrder(ctx, "c", p.ID)
	f.app.PlaceOrder(ctx, "c", p.ID)

	stale := p
	stale.MerchantName = "Old name"
	stale.Stock = 2
	if _, err := f.catalog.Replace(ctx, stale); err != nil {
		t.Fatal(err)
	}

	d, err := f.app.MerchantDashboard(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if d.PendingCount != 2 || len(d.Orders) != 2 || len(d.Products) != 1 {
		t.Fatalf("dashboard = %+v", d)
	}
	if d.Products[0].MerchantName != m.StoreName {
		t.Fatalf("stale product not repaired: %+v", d.Products[0])
	}
	if d.StockLevels[0].Name != "Sourdough " || d.StockLevels[0].Stock != 2 {
		t.Fatalf("stock levels = %+v", d.StockLevels)
	}
	if len(d.Notifications) == 0 || d.Notifications[0].Message != "Attention: you have 2 pending orders to prepare." {
		t.Fatalf("notifications = %+v", d.Notifications)
	}

	if _, err := f.app.MerchantDashboard(ctx, "c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
}

func TestCatalogView(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "c", orders.RoleCustomer)

	view, err := f.app.Catalog(context.Background(), "c", catalog.Filter{Query: "croiss"})
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Products) != 1 || !view.Products[0].OpenNow {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Categories) != 3 || view.Categories[0] != catalog.AllCategories {
		t.Fatalf("categories = %v", view.Categories)
	}
}

func TestTickPushesCountdownAndLogoutForgets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 1)
	f.app.PlaceOrder(ctx, "c", "1")
	f.app.CustomerOrders(ctx, "c")

	if err := f.app.Tick(ctx, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if f.sink.count(notify.TypeCountdown) != 1 {
		t.Fatalf("countdowns = %d", f.sink.count(notify.TypeCountdown))
	}

	if err := f.app.Logout(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.app.CurrentUser(ctx, "c"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
	f.app.Tick(ctx, t0.Add(2*time.Minute))
	if f.sink.count(notify.TypeCountdown) != 1 {
		t.Fatal("logged-out customer still receives countdowns")
	}
}

type flakyLedger struct {
	*orders.MemoryLedger
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

func newFlakyLedger() *flakyLedger {
	return &flakyLedger{MemoryLedger: orders.NewMemoryLedger(), fail: map[string]bool{}, calls: map[string]int{}}
}

func (l *flakyLedger) ByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	l.mu.Lock()
	l.calls[customerID]++
	fail := l.fail[customerID]
	l.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return l.MemoryLedger.ByCustomer(ctx, customerID)
}

func (l *flakyLedger) failFor(customerID string) {
	l.mu.Lock()
	l.fail[customerID] = true
	l.mu.Unlock()
}

func (l *flakyLedger) callsFor(customerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[customerID]
}

func TestTickSkipsCustomerWhoseOrdersFailToLoad(t *testing.T) {
	ctx := context.Background()
	ledger := newFlakyLedger()
	f := newFixture(t, ledger)
	broken := f.login(t, "a", orders.RoleCustomer)
	f.login(t, "b", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 2)
	for _, sid := range []string{"a", "b"} {
		if _, err := f.app.PlaceOrder(ctx, sid, "1"); err != nil {
			t.Fatal(err)
		}
		f.app.CustomerOrders(ctx, sid)
	}

	ledger.failFor(broken.ID)
	if err := f.app.Tick(ctx, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if f.sink.count(notify.TypeCountdown) != 1 {
		t.Fatalf("countdowns = %d, want 1", f.sink.count(notify.TypeCountdown))
	}
}

func TestTickPrunesIdleCustomer(t *testing.T) {
	ctx := context.Background()
	ledger := newFlakyLedger()
	f := newFixture(t, ledger)
	u := f.login(t, "c", orders.RoleCustomer)
	f.expect(orders.TopicOrderPlaced, 1)
	o, err := f.app.PlaceOrder(ctx, "c", "1")
	if err != nil {
		t.Fatal(err)
	}
	ledger.SetStatus(ctx, o.ID, orders.StatusPending, orders.StatusAccepted)
	ledger.SetStatus(ctx, o.ID, orders.StatusAccepted, orders.StatusReady)
	f.app.CustomerOrders(ctx, "c")
	if f.sink.count(notify.TypeNotification) != 1 {
		t.Fatalf("notifications = %d", f.sink.count(notify.TypeNotification))
	}

	f.app.Tick(ctx, t0.Add(time.Second))
	if len(f.app.d.Center.Customers()) != 1 {
		t.Fatal("customer pruned while a notification is visible")
	}

	f.app.d.Center.Evict(t0.Add(time.Minute))
	f.app.Tick(ctx, t0.Add(time.Minute))
	if got := f.app.d.Center.Customers(); len(got) != 0 {
		t.Fatalf("customers = %v", got)
	}
	calls := ledger.callsFor(u.ID)
	f.app.Tick(ctx, t0.Add(2*time.Minute))
	if ledger.callsFor(u.ID) != calls {
		t.Fatal("pruned customer still queried on tick")
	}

	f.app.CustomerOrders(ctx, "c")
	if f.sink.count(notify.TypeNotification) != 1 {
		t.Fatal("ready notification fired again after prune")
	}
}
