package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

func validOrder() CreateOrderRequest {
	return CreateOrderRequest{
		CustomerName:    "Ada Lovelace",
		Email:           "ada@example.com",
		ContactNumber:   "555-0100",
		ShippingAddress: "1 Analytical Way",
		Items:           []OrderItem{{ProductID: "p1", Quantity: 2}},
	}
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()
	if err := v.Struct(validOrder()); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_LeavesWorkflowChecks(t *testing.T) {
	v := New()
	req := validOrder()
	req.Items = nil
	if err := v.Struct(req); err != nil {
		t.Fatalf("empty items must reach the workflow, got %v", err)
	}
	req.Items = []OrderItem{{ProductID: "p1", Quantity: 0}}
	if err := v.Struct(req); err != nil {
		t.Fatalf("zero quantity must reach the workflow, got %v", err)
	}
}

func TestCreateOrderRequest_InvalidFields(t *testing.T) {
	v := New()
	cases := map[string]func(*CreateOrderRequest){
		"bad email":       func(r *CreateOrderRequest) { r.Email = "not-an-email" },
		"long name":       func(r *CreateOrderRequest) { r.CustomerName = strings.Repeat("x", 101) },
		"long contact":    func(r *CreateOrderRequest) { r.ContactNumber = strings.Repeat("1", 21) },
		"missing address": func(r *CreateOrderRequest) { r.ShippingAddress = "" },
		"missing product": func(r *CreateOrderRequest) { r.Items = []OrderItem{{Quantity: 1}} },
	}
	for name, mutate := range cases {
		req := validOrder()
		mutate(&req)
		if err := v.Struct(req); err == nil {
			t.Fatalf("%s: expected validation error, got nil", name)
		}
	}
}

func TestProductRequest_Money(t *testing.T) {
	v := New()
	req := ProductRequest{
		Name:        "Lamp",
		Description: "A lamp",
		Price:       pricing.MustMoney("19.99"),
		Stock:       3,
		Category:    "Home",
	}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	req.Price = pricing.MustMoney("-1")
	if err := v.Struct(req); err == nil {
		t.Fatal("expected negative price to be rejected")
	}

	req.Price = pricing.Zero
	req.Status = "Archived"
	if err := v.Struct(req); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestListOrdersQuery_DateRange(t *testing.T) {
	v := New()
	if err := v.Struct(ListOrdersQuery{StartDate: "2025-01-01", EndDate: "2025-01-31"}); err != nil {
		t.Fatalf("expected valid range, got %v", err)
	}
	if err := v.Struct(ListOrdersQuery{StartDate: "2025-02-01", EndDate: "2025-01-31"}); err == nil {
		t.Fatal("expected inverted range to be rejected")
	}
	if err := v.Struct(ListOrdersQuery{StartDate: "01/02/2025"}); err == nil {
		t.Fatal("expected malformed date to be rejected")
	}
}

func TestBindAndValidate_WritesFieldErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customerName":"Ada","email":"nope"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req CreateOrderRequest
	if err := BindAndValidate(c, &req, New()); err == nil {
		t.Fatal("expected error")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "validation_failed") || !strings.Contains(body, "CreateOrderRequest.Email") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestBindAndValidate_MalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req CreateOrderRequest
	if err := BindAndValidate(c, &req, New()); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(w.Body.String(), "invalid_request_body") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
