package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cashreg/internal/camera"
	"github.com/vbonduro/cashreg/internal/db"
	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/imagestore/local"
	"github.com/vbonduro/cashreg/internal/logging"
	"github.com/vbonduro/cashreg/internal/payment"
	"github.com/vbonduro/cashreg/internal/service"
	"github.com/vbonduro/cashreg/internal/store"
	"github.com/vbonduro/cashreg/internal/web"
)

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
// http.DetectContentType identifies JPEG from the leading 0xFF 0xD8 bytes.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

type stubGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *stubGateway) Charge(_ context.Context, _ payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payment.ChargeResult{OrderID: "1001"}, nil
}

func (g *stubGateway) decline(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// solidSource is a camera that always sees the same green frame.
type solidSource struct{}

func (solidSource) ReadFrame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	return img, nil
}

func (solidSource) Close() error { return nil }

type fixture struct {
	server    *httptest.Server
	inventory *service.InventoryService
	customers *service.CustomerService
	images    *local.Store
	gateway   *stubGateway
}

func newFixture(t *testing.T, withCamera bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Open(filepath.Join(dir, "register.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	images, err := local.New(filepath.Join(dir, "id_images"))
	require.NoError(t, err)

	logger := logging.Discard()
	customerStore := store.NewCustomerStore(database)
	inventory := service.NewInventoryService(store.NewInventoryStore(database), logger)
	customers := service.NewCustomerService(customerStore, logger)
	transactions := service.NewTransactionService(store.NewTransactionStore(database), customerStore, logger)
	gateway := &stubGateway{}

	deps := web.Deps{
		Inventory:    inventory,
		Customers:    customers,
		Transactions: transactions,
		Checkout:     service.NewCheckout(inventory, customers, transactions, gateway, decimal.RequireFromString("0.08"), 21, logger),
		Images:       images,
	}
	if withCamera {
		device := camera.NewDevice(solidSource{}, images, logger)
		t.Cleanup(func() { _ = device.Release() })
		deps.Camera = device
	}

	srv := httptest.NewServer(web.NewServer(deps, logger))
	t.Cleanup(srv.Close)

	return &fixture{server: srv, inventory: inventory, customers: customers, images: images, gateway: gateway}
}

func (f *fixture) addItem(t *testing.T, name, price string, qty int, barcode string) int64 {
	t.Helper()
	id, err := f.inventory.Create(context.Background(), name, decimal.RequireFromString(price), qty,
		service.InventoryOptions{Barcode: barcode})
	require.NoError(t, err)
	return id
}

func (f *fixture) addCustomer(t *testing.T, dob time.Time) int64 {
	t.Helper()
	key, err := f.images.Save(context.Background(), "id", "image/jpeg", bytes.NewReader(minimalJPEG))
	require.NoError(t, err)
	path, err := f.images.Path(key)
	require.NoError(t, err)
	id, err := f.customers.Create(context.Background(), "grace", "hopper", "grace@example.com", dob, path, service.CustomerOptions{})
	require.NoError(t, err)
	return id
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *fixture) upload(t *testing.T, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "scan.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.server.URL+"/id-images", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func adult() time.Time {
	return time.Date(1990, time.March, 4, 0, 0, 0, 0, time.Local)
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestInventoryRoutes(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodGet, "/inventory", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty []domain.InventoryItem
	decodeBody(t, resp, &empty)
	assert.Empty(t, empty)
	assert.NotNil(t, empty, "an empty inventory is [] not null")

	id := f.addItem(t, "Widget", "10.79", 10, "123456789012")

	resp = f.do(t, http.MethodGet, "/inventory/barcode/123456789012", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var item domain.InventoryItem
	decodeBody(t, resp, &item)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, "10.79", item.Price.StringFixed(2))

	resp = f.do(t, http.MethodGet, "/inventory/barcode/000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/inventory/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/inventory/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuoteAndCashCheckout(t *testing.T) {
	f := newFixture(t, false)
	id := f.addItem(t, "Widget", "10.79", 10, "123456789012")
	cart := map[string]any{
		"items":           []map[string]any{{"barcode": "123456789012", "quantity": 2}},
		"decrement_stock": true,
	}

	resp := f.do(t, http.MethodPost, "/checkout/quote", cart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var quote service.Quote
	decodeBody(t, resp, &quote)
	assert.Equal(t, "21.58", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "1.73", quote.Tax.StringFixed(2))
	assert.Equal(t, "23.31", quote.Total.StringFixed(2))

	resp = f.do(t, http.MethodPost, "/checkout", cart)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var receipt service.Receipt
	decodeBody(t, resp, &receipt)
	assert.Equal(t, service.PaymentCash, receipt.PaymentMethod)
	assert.False(t, receipt.IDVerified)
	assert.Zero(t, f.gateway.callCount())

	item, err := f.inventory.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 8, item.Quantity)

	resp = f.do(t, http.MethodGet, "/transactions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []domain.Transaction
	decodeBody(t, resp, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, receipt.TransactionID, txs[0].ID)
	assert.Equal(t, "23.31", txs[0].Total.StringFixed(2))
}

func TestCheckoutRejectsBadCarts(t *testing.T) {
	f := newFixture(t, false)
	f.addItem(t, "Widget", "1.00", 1, "")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty cart", map[string]any{"items": []any{}}, http.StatusBadRequest},
		{"zero quantity", map[string]any{"items": []map[string]any{{"item_id": 1, "quantity": 0}}}, http.StatusBadRequest},
		{"unknown item", map[string]any{"items": []map[string]any{{"item_id": 42, "quantity": 1}}}, http.StatusNotFound},
		{"unknown field", map[string]any{"items": []any{}, "discount": 5}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/checkout", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCardCheckoutWithCustomer(t *testing.T) {
	f := newFixture(t, false)
	f.addItem(t, "Widget", "10.00", 5, "111")
	customerID := f.addCustomer(t, adult())

	resp := f.do(t, http.MethodPost, "/checkout", map[string]any{
		"items":          []map[string]any{{"barcode": "111", "quantity": 1}},
		"payment_method": "Card",
		"customer_id":    customerID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var receipt service.Receipt
	decodeBody(t, resp, &receipt)
	assert.Equal(t, "card", receipt.PaymentMethod)
	assert.True(t, receipt.IDVerified)
	assert.Equal(t, "1001", receipt.RemoteOrderID)
	assert.Equal(t, 1, f.gateway.callCount())

	resp = f.do(t, http.MethodGet, "/transactions?customer_id="+itoa(customerID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []domain.Transaction
	decodeBody(t, resp, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "1001", txs[0].RemoteOrderID)

	resp = f.do(t, http.MethodGet, "/transactions?customer_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutDeclinedCharge(t *testing.T) {
	f := newFixture(t, false)
	f.addItem(t, "Widget", "10.00", 5, "111")
	f.gateway.decline(&payment.ChargeError{Outcome: payment.OutcomeRejected, StatusCode: 422, Reason: "card declined"})

	resp := f.do(t, http.MethodPost, "/checkout", map[string]any{
		"items":          []map[string]any{{"barcode": "111", "quantity": 1}},
		"payment_method": "card",
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/transactions", nil)
	var txs []domain.Transaction
	decodeBody(t, resp, &txs)
	assert.Empty(t, txs)
}

func TestCheckoutRefusesUnderageCustomer(t *testing.T) {
	f := newFixture(t, false)
	f.addItem(t, "Widget", "10.00", 5, "111")
	customerID := f.addCustomer(t, time.Now().AddDate(-15, 0, 0))

	resp := f.do(t, http.MethodPost, "/checkout", map[string]any{
		"items":       []map[string]any{{"barcode": "111", "quantity": 1}},
		"customer_id": customerID,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUploadIDImageAndCreateCustomer(t *testing.T) {
	f := newFixture(t, false)

	resp := f.upload(t, []byte("%PDF-1.4 not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.upload(t, minimalJPEG)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var uploaded struct {
		Key  string `json:"key"`
		Path string `json:"path"`
	}
	decodeBody(t, resp, &uploaded)
	assert.True(t, strings.HasPrefix(uploaded.Key, "id_"))
	assert.Equal(t, filepath.Join(f.images.Dir(), uploaded.Key), uploaded.Path)

	resp = f.do(t, http.MethodPost, "/customers", map[string]any{
		"first_name":   "ada",
		"last_name":    "lovelace",
		"email":        "ada@example.com",
		"dob":          "1990-03-04",
		"id_image_key": uploaded.Key,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c domain.Customer
	decodeBody(t, resp, &c)
	assert.Equal(t, "Ada", c.FirstName)
	assert.Equal(t, uploaded.Path, c.IDImagePath)

	resp = f.do(t, http.MethodGet, "/customers/"+itoa(c.ID)+"/id-image", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, minimalJPEG, got)
}

func TestCreateCustomerValidation(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing image", map[string]any{"first_name": "a", "last_name": "b", "email": "a@b.c", "dob": "1990-01-01"}},
		{"image path instead of key", map[string]any{"first_name": "a", "last_name": "b", "email": "a@b.c", "dob": "1990-01-01", "id_image_key": "../../etc/passwd"}},
		{"bad dob", map[string]any{"first_name": "a", "last_name": "b", "email": "a@b.c", "dob": "01/01/1990", "id_image_key": "id_x.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/customers", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp := f.do(t, http.MethodGet, "/customers/7", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCameraRoutesWithoutDevice(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodPost, "/camera/capture", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/camera/feed", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCameraCapture(t *testing.T) {
	f := newFixture(t, true)

	resp := f.do(t, http.MethodPost, "/camera/capture", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var captured struct {
		Key  string `json:"key"`
		Path string `json:"path"`
	}
	decodeBody(t, resp, &captured)
	assert.True(t, strings.HasSuffix(captured.Key, ".jpg"))

	rc, mimeType, err := f.images.Open(context.Background(), captured.Key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/jpeg", mimeType)
	_, err = jpeg.Decode(rc)
	assert.NoError(t, err)
}

func TestCameraFeedStreamsJPEGParts(t *testing.T) {
	f := newFixture(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/camera/feed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)

	mr := multipart.NewReader(resp.Body, params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	frame, err := jpeg.Decode(part)
	require.NoError(t, err)
	assert.Equal(t, 16, frame.Bounds().Dx())

	// A second viewer is turned away while the first is watching.
	second := f.do(t, http.MethodGet, "/camera/feed", nil)
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestCameraFeedFreedWhenViewerLeaves(t *testing.T) {
	f := newFixture(t, true)

	watch := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/camera/feed", nil)
		if err != nil {
			return nil, err
		}
		return http.DefaultClient.Do(req)
	}

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := watch(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancel()
	_ = resp.Body.Close()

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		resp, err := watch(ctx)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
}
