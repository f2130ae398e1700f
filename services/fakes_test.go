package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/providers"
	"github.com/Vaibhavdev309/tapestry/repository"
)

func cloneProduct(p *models.Product) *models.Product {
	c := *p
	c.Sizes = append([]string(nil), p.Sizes...)
	c.Images = append([]string(nil), p.Images...)
	c.Inventory.SizeInventory = append([]models.SizeInventory(nil), p.Inventory.SizeInventory...)
	c.Inventory.StockHistory = append([]models.StockHistoryEntry(nil), p.Inventory.StockHistory...)
	return &c
}

// fakeProductRepo keeps products in memory with the same version check as Mongo.
type fakeProductRepo struct {
	mu        sync.Mutex
	products  map[primitive.ObjectID]*models.Product
	conflicts int
	saveErr   error
	// afterSave runs outside the lock after every successful save.
	afterSave func(*models.Product)
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[primitive.ObjectID]*models.Product{}}
}

func (r *fakeProductRepo) Create(_ context.Context, p *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Version = 1
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *fakeProductRepo) List(_ context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	all, _ := r.ListAll(context.Background())
	out := []models.Product{}
	for _, p := range all {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) ListAll(_ context.Context) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeProductRepo) ListLowStock(ctx context.Context) ([]models.Product, error) {
	all, _ := r.ListAll(ctx)
	out := []models.Product{}
	for _, p := range all {
		if p.Inventory.LowStockAlert || p.Inventory.OutOfStock {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Save(_ context.Context, p *models.Product) error {
	r.mu.Lock()
	if r.saveErr != nil {
		r.mu.Unlock()
		return r.saveErr
	}
	cur, ok := r.products[p.ID]
	if !ok || cur.Version != p.Version {
		r.conflicts++
		r.mu.Unlock()
		return repository.ErrVersionConflict
	}
	p.Version++
	r.products[p.ID] = cloneProduct(p)
	hook := r.afterSave
	r.mu.Unlock()

	if hook != nil {
		hook(cloneProduct(p))
	}
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) get(id primitive.ObjectID) *models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneProduct(r.products[id])
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.StatusHistory = append([]models.StatusChange(nil), o.StatusHistory...)
	if o.PaymentDetails != nil {
		d := *o.PaymentDetails
		c.PaymentDetails = &d
	}
	return &c
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]*models.Order
	createErr error
	conflicts int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[primitive.ObjectID]*models.Order{}}
}

func (r *fakeOrderRepo) Create(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	o.Version = 1
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) findBy(match func(*models.Order) bool) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOrderRepo) FindByGatewayOrderID(_ context.Context, id string) (*models.Order, error) {
	return r.findBy(func(o *models.Order) bool {
		return o.PaymentDetails != nil && o.PaymentDetails.RazorpayOrderID == id
	})
}

func (r *fakeOrderRepo) FindByGatewayPaymentID(_ context.Context, id string) (*models.Order, error) {
	return r.findBy(func(o *models.Order) bool {
		return o.PaymentDetails != nil && o.PaymentDetails.RazorpayPaymentID == id
	})
}

func (r *fakeOrderRepo) List(_ context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []models.Order{}
	for _, o := range r.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeOrderRepo) Update(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok || cur.Version != o.Version {
		r.conflicts++
		return repository.ErrVersionConflict
	}
	o.Version++
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *fakeOrderRepo) get(id primitive.ObjectID) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrder(r.orders[id])
}

type fakePriceRequestRepo struct {
	mu       sync.Mutex
	requests map[primitive.ObjectID]*models.PriceRequest
}

func newFakePriceRequestRepo() *fakePriceRequestRepo {
	return &fakePriceRequestRepo{requests: map[primitive.ObjectID]*models.PriceRequest{}}
}

func clonePriceRequest(pr *models.PriceRequest) *models.PriceRequest {
	c := *pr
	c.Items = append([]models.PriceRequestItem(nil), pr.Items...)
	return &c
}

func (r *fakePriceRequestRepo) Create(_ context.Context, pr *models.PriceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pr.Status == models.PriceRequestPending {
		for _, existing := range r.requests {
			if existing.UserID == pr.UserID && existing.Status == models.PriceRequestPending {
				return repository.ErrDuplicate
			}
		}
	}
	if pr.ID.IsZero() {
		pr.ID = primitive.NewObjectID()
	}
	r.requests[pr.ID] = clonePriceRequest(pr)
	return nil
}

func (r *fakePriceRequestRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.PriceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePriceRequest(pr), nil
}

func (r *fakePriceRequestRepo) FindLatestByUser(_ context.Context, userID primitive.ObjectID, statuses ...models.PriceRequestStatus) (*models.PriceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.PriceRequest
	for _, pr := range r.requests {
		if pr.UserID != userID {
			continue
		}
		match := len(statuses) == 0
		for _, st := range statuses {
			if pr.Status == st {
				match = true
			}
		}
		if match && (latest == nil || pr.CreatedAt.After(latest.CreatedAt)) {
			latest = pr
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return clonePriceRequest(latest), nil
}

func (r *fakePriceRequestRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.PriceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.PriceRequest{}
	for _, pr := range r.requests {
		if pr.UserID == userID {
			out = append(out, *clonePriceRequest(pr))
		}
	}
	return out, nil
}

func (r *fakePriceRequestRepo) List(_ context.Context, status models.PriceRequestStatus, _, _ int) ([]models.PriceRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.PriceRequest{}
	for _, pr := range r.requests {
		if status == "" || pr.Status == status {
			out = append(out, *clonePriceRequest(pr))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakePriceRequestRepo) Transition(_ context.Context, pr *models.PriceRequest, from models.PriceRequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.requests[pr.ID]
	if !ok || cur.Status != from {
		return repository.ErrVersionConflict
	}
	r.requests[pr.ID] = clonePriceRequest(pr)
	return nil
}

func (r *fakePriceRequestRepo) updateIf(id primitive.ObjectID, holder *primitive.ObjectID, apply func(*models.PriceRequest)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.requests[id]
	if !ok || cur.Status != models.PriceRequestApproved {
		return repository.ErrVersionConflict
	}
	if (holder == nil) != (cur.OrderID == nil) || (holder != nil && *holder != *cur.OrderID) {
		return repository.ErrVersionConflict
	}
	apply(cur)
	return nil
}

func (r *fakePriceRequestRepo) Claim(_ context.Context, id, orderID primitive.ObjectID) error {
	return r.updateIf(id, nil, func(pr *models.PriceRequest) { pr.OrderID = &orderID })
}

func (r *fakePriceRequestRepo) ReleaseClaim(_ context.Context, id, orderID primitive.ObjectID) error {
	return r.updateIf(id, &orderID, func(pr *models.PriceRequest) { pr.OrderID = nil })
}

func (r *fakePriceRequestRepo) Complete(_ context.Context, id, orderID primitive.ObjectID) error {
	return r.updateIf(id, &orderID, func(pr *models.PriceRequest) { pr.Status = models.PriceRequestCompleted })
}

type fakeCartRepo struct {
	mu      sync.Mutex
	carts   map[string]*models.Cart
	deleted []string
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: map[string]*models.Cart{}}
}

func (r *fakeCartRepo) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp, nil
}

func (r *fakeCartRepo) SaveCart(_ context.Context, cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cart
	cp.Items = append([]models.CartItem(nil), cart.Items...)
	r.carts[cart.UserID] = &cp
	return nil
}

func (r *fakeCartRepo) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	r.deleted = append(r.deleted, userID)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *fakeNotifier) Enqueue(_ context.Context, notif models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
	return nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Type)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, evt models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeGateway struct {
	orderErr   error
	refundErr  error
	payment    map[string]interface{}
	created    []int64
	refunds    []string
	fetchCalls int
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountPaise int64, currency, receipt string, _ map[string]string) (*providers.GatewayOrder, error) {
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.created = append(g.created, amountPaise)
	return &providers.GatewayOrder{ID: "order_" + receipt, Amount: amountPaise, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (map[string]interface{}, error) {
	g.fetchCalls++
	if g.payment != nil {
		return g.payment, nil
	}
	return map[string]interface{}{"id": paymentID, "status": "captured"}, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amountPaise int64, _ map[string]string) (*providers.GatewayRefund, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, paymentID)
	return &providers.GatewayRefund{ID: "rfnd_" + paymentID, PaymentID: paymentID, Amount: amountPaise, Status: "processed"}, nil
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.NotificationJob
	listErr error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{jobs: map[uuid.UUID]*models.NotificationJob{}}
}

func (r *fakeNotificationRepo) Enqueue(_ context.Context, job *models.NotificationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.NotificationPending
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = time.Now().UTC()
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeNotificationRepo) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]models.NotificationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.NotificationJob{}
	for _, j := range r.jobs {
		if len(out) == limit {
			break
		}
		if j.Status == models.NotificationPending && !j.NextAttemptAt.After(now) {
			j.NextAttemptAt = now.Add(lease)
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	j.Status = models.NotificationSent
	j.Attempts++
	j.SentAt = &at
	return nil
}

func (r *fakeNotificationRepo) MarkRetry(_ context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	j.Attempts = attempts
	j.NextAttemptAt = next
	j.LastError = lastErr
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, attempts int, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	j.Status = models.NotificationFailed
	j.Attempts = attempts
	j.LastError = lastErr
	return nil
}

func (r *fakeNotificationRepo) List(_ context.Context, f models.NotificationFilter) ([]models.NotificationJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	out := []models.NotificationJob{}
	for _, j := range r.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, *j)
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) only() *models.NotificationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		cp := *j
		return &cp
	}
	return nil
}

// harness wires every service against in-memory stores.
type harness struct {
	products      *fakeProductRepo
	orders        *fakeOrderRepo
	priceRequests *fakePriceRequestRepo
	carts         *fakeCartRepo
	notifier      *fakeNotifier
	publisher     *fakePublisher
	gateway       *fakeGateway

	inventory  *InventoryService
	productSvc *ProductService
	orderSvc   *OrderService
	prSvc      *PriceRequestService
	paymentSvc *PaymentService
	cartSvc    *CartService
}

const (
	testKeySecret     = "rzp_secret"
	testWebhookSecret = "whsec_test"
)

func newHarness() *harness {
	logger := zap.NewNop()
	h := &harness{
		products:      newFakeProductRepo(),
		orders:        newFakeOrderRepo(),
		priceRequests: newFakePriceRequestRepo(),
		carts:         newFakeCartRepo(),
		notifier:      &fakeNotifier{},
		publisher:     &fakePublisher{},
		gateway:       &fakeGateway{},
	}
	h.inventory = NewInventoryService(h.products, nil, logger)
	h.productSvc = NewProductService(h.products, h.inventory, logger)
	h.prSvc = NewPriceRequestService(h.priceRequests, h.products, h.notifier, logger)
	h.orderSvc = NewOrderService(h.orders, h.prSvc, h.carts, h.inventory, h.notifier, h.publisher, nil, logger)
	h.paymentSvc = NewPaymentService(h.gateway, h.orderSvc, PaymentConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
	}, h.notifier, h.publisher, nil, logger)
	h.cartSvc = NewCartService(h.carts, h.productSvc, logger)
	return h
}

func intPtr(v int) *int { return &v }

func mustID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

// seedProduct stores a product with the given size quantities and threshold 2.
func (h *harness) seedProduct(name string, price float64, sizes map[string]int) *models.Product {
	inputs := []models.SizeStockInput{}
	keys := make([]string, 0, len(sizes))
	for k := range sizes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		inputs = append(inputs, models.SizeStockInput{Size: k, Quantity: sizes[k], LowStockThreshold: intPtr(2)})
	}
	p := &models.Product{
		Name:      name,
		Price:     price,
		Category:  "Women",
		Sizes:     keys,
		Inventory: models.NewInventory(inputs, "seed", time.Now().UTC()),
	}
	_ = h.products.Create(context.Background(), p)
	return p
}

func testPrincipal() models.Principal {
	return models.Principal{UserID: primitive.NewObjectID().Hex(), Email: "buyer@example.com", Role: models.RoleUser}
}

func testAddress() models.Address {
	return models.Address{
		FullName: "Asha Rao",
		Street:   "12 MG Road",
		City:     "Bengaluru",
		State:    "KA",
		Zip:      "560001",
		Country:  "India",
		Phone:    "9999999999",
	}
}
