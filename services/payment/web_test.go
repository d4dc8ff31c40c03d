package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
	"github.com/sweetoven/bakeshop/services/orderevents"
)

func TestCashOnDeliveryConfirmsOrder(t *testing.T) {
	c, router, orderStore, _, publisher := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.AssignableToTypeOf(orderevents.OrderConfirmed{})).Return(nil).Times(1)

	httpResp := doRequest(router, "POST", "/api/order/SO20260828001/payment/cod", "")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	result := initiationResult{}
	assert.NoError(t, json.Unmarshal(httpResp.Body.Bytes(), &result))
	assert.Equal(t, orderapi.OrderStatusConfirmed, result.OrderStatus)
	assert.Equal(t, orderapi.PaymentStatusPending, result.PaymentStatus)
	assert.Empty(t, result.RedirectURL)

	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentMethodCOD, stored.PaymentMethod)
	assert.Equal(t, orderapi.OrderStatusConfirmed, stored.OrderStatus)
}

func TestCashOnDeliveryInitiationIsIdempotent(t *testing.T) {
	c, router, orderStore, _, publisher := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.AssignableToTypeOf(orderevents.OrderConfirmed{})).Return(nil).Times(1)

	first := doRequest(router, "POST", "/api/order/SO20260828001/payment/cod", "")
	second := doRequest(router, "POST", "/api/order/SO20260828001/payment/cod", "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
}

func TestOnlineInitiationReturnsRedirect(t *testing.T) {
	c, router, orderStore, payer, _ := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	payer.EXPECT().CreateTransaction(gomock.Any(), gomock.Any(), "https://bakeshop.example/thanks").
		Return(ProviderHandle{
			Provider:       "stripe",
			TransactionRef: "cs_test_123",
			RedirectURL:    "https://checkout.stripe.com/pay/cs_test_123",
		}, nil)

	httpResp := doRequest(router, "POST", "/api/order/SO20260828001/payment/online",
		"provider=stripe&returnUrl=https://bakeshop.example/thanks")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	result := initiationResult{}
	assert.NoError(t, json.Unmarshal(httpResp.Body.Bytes(), &result))
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_123", result.RedirectURL)

	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, "stripe", stored.PaymentProvider)
	assert.Equal(t, "cs_test_123", stored.ProviderRef)
	assert.Equal(t, orderapi.PaymentStatusPending, stored.PaymentStatus)
}

func TestInitiationRejectedWhenAlreadyPaid(t *testing.T) {
	c, router, orderStore, _, _ := setup(t)

	order := pendingOrder("SO20260828001")
	order.PaymentStatus = orderapi.PaymentStatusPaid
	assert.NoError(t, orderStore.Put(c, order.UID, order))

	httpResp := doRequest(router, "POST", "/api/order/SO20260828001/payment/online", "provider=stripe")

	assert.Equal(t, http.StatusConflict, httpResp.Code)
}

func TestWebhookSuccessMarksOrderPaid(t *testing.T) {
	c, router, orderStore, payer, publisher := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	payer.EXPECT().VerifyNotification(gomock.Any(), []byte("payload"), "sig").
		Return(Notification{
			OrderUID:       "SO20260828001",
			TransactionRef: "cs_test_123",
			Outcome:        PaymentOutcomeSuccess,
		}, nil)
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.AssignableToTypeOf(orderevents.OrderPaid{})).Return(nil).Times(1)

	httpResp := doWebhook(router, "/payment/webhook/stripe", "payload", "sig")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, orderapi.OrderStatusConfirmed, stored.OrderStatus)
	assert.NotNil(t, stored.PaymentCompletedAt)
	assert.Equal(t, "cs_test_123", stored.ProviderRef)
}

func TestWebhookRedeliveryDoesNotTransitionTwice(t *testing.T) {
	c, router, orderStore, payer, publisher := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	payer.EXPECT().VerifyNotification(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Notification{
			OrderUID:       "SO20260828001",
			TransactionRef: "cs_test_123",
			Outcome:        PaymentOutcomeSuccess,
		}, nil).Times(2)

	// the paid event goes out exactly once
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.AssignableToTypeOf(orderevents.OrderPaid{})).Return(nil).Times(1)

	first := doWebhook(router, "/payment/webhook/stripe", "payload", "sig")
	second := doWebhook(router, "/payment/webhook/stripe", "payload", "sig")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)

	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentStatusPaid, stored.PaymentStatus)
}

func TestWebhookBadSignatureLeavesOrderUntouched(t *testing.T) {
	c, router, orderStore, payer, _ := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	payer.EXPECT().VerifyNotification(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Notification{}, myerrors.NewAuthenticationError(fmt.Errorf("webhook signature verification failed")))

	httpResp := doWebhook(router, "/payment/webhook/stripe", "payload", "forged")

	assert.Equal(t, http.StatusForbidden, httpResp.Code)

	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, orderapi.OrderStatusPending, stored.OrderStatus)
}

func TestWebhookFailureMarksPaymentFailed(t *testing.T) {
	c, router, orderStore, payer, publisher := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")
	payer.EXPECT().VerifyNotification(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Notification{
			OrderUID:       "SO20260828001",
			TransactionRef: "cs_test_123",
			Outcome:        PaymentOutcomeFailed,
			Details:        "checkout.session.expired",
		}, nil)
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.AssignableToTypeOf(orderevents.OrderPaymentFailed{})).Return(nil).Times(1)

	httpResp := doWebhook(router, "/payment/webhook/stripe", "payload", "sig")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentStatusFailed, stored.PaymentStatus)
	// the order itself stays pending so payment can be retried
	assert.Equal(t, orderapi.OrderStatusPending, stored.OrderStatus)
}

func TestLateFailureAfterSuccessIsIgnored(t *testing.T) {
	c, router, orderStore, payer, _ := setup(t)

	order := pendingOrder("SO20260828001")
	order.PaymentStatus = orderapi.PaymentStatusPaid
	assert.NoError(t, orderStore.Put(c, order.UID, order))

	payer.EXPECT().VerifyNotification(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(Notification{
			OrderUID: "SO20260828001",
			Outcome:  PaymentOutcomeFailed,
		}, nil)

	httpResp := doWebhook(router, "/payment/webhook/stripe", "payload", "sig")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentStatusPaid, stored.PaymentStatus)
}

func TestCashReceivedMarksCODOrderPaid(t *testing.T) {
	c, router, orderStore, _, _ := setup(t)

	order := pendingOrder("SO20260828001")
	order.PaymentMethod = orderapi.PaymentMethodCOD
	order.OrderStatus = orderapi.OrderStatusDelivered
	assert.NoError(t, orderStore.Put(c, order.UID, order))

	httpResp := doRequest(router, "PUT", "/api/order/SO20260828001/cod/paid", "")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	stored, _, _ := orderStore.Get(c, "SO20260828001")
	assert.Equal(t, orderapi.PaymentStatusPaid, stored.PaymentStatus)
	assert.NotNil(t, stored.PaymentCompletedAt)
}

func TestCashReceivedRejectedForOnlineOrder(t *testing.T) {
	c, router, orderStore, _, _ := setup(t)

	order := pendingOrder("SO20260828001")
	order.PaymentMethod = orderapi.PaymentMethodOnline
	assert.NoError(t, orderStore.Put(c, order.UID, order))

	httpResp := doRequest(router, "PUT", "/api/order/SO20260828001/cod/paid", "")

	assert.Equal(t, http.StatusBadRequest, httpResp.Code)
}

func TestPaymentReturnPage(t *testing.T) {
	c, router, orderStore, _, _ := setup(t)

	storePendingOrder(t, c, orderStore, "SO20260828001")

	httpResp := doRequest(router, "GET", "/payment/return/SO20260828001", "")

	assert.Equal(t, http.StatusOK, httpResp.Code)
	result := initiationResult{}
	assert.NoError(t, json.Unmarshal(httpResp.Body.Bytes(), &result))
	assert.Equal(t, orderapi.PaymentStatusPending, result.PaymentStatus)
}

func setup(t *testing.T) (context.Context, *mux.Router, mystore.Store[orderapi.Order], *MockPayer, *mypublisher.MockPublisher) {
	t.Helper()

	ctrl := gomock.NewController(t)
	c := context.Background()

	orderStore, _, err := mystore.NewInMemoryStore[orderapi.Order](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	payer := NewMockPayer(ctrl)
	payer.EXPECT().Name().Return("stripe").AnyTimes()

	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().CreateTopic(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	webService := NewWebService(orderStore, []Payer{payer}, publisher, nower)

	router := mux.NewRouter()
	err = webService.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, orderStore, payer, publisher
}

func pendingOrder(uid string) orderapi.Order {
	return orderapi.Order{
		UID: uid,
		Items: []orderapi.OrderItem{
			{ProductUID: "choco-truffle", Name: "Chocolate Truffle", UnitPrice: 500, Quantity: 1},
		},
		Customer: orderapi.CustomerInfo{
			FullName: "Asha Rao",
			Mobile:   "9876543210",
			Email:    "asha@example.com",
		},
		Subtotal:       500,
		DeliveryCharge: 60,
		TotalAmount:    560,
		OrderStatus:    orderapi.OrderStatusPending,
		PaymentStatus:  orderapi.PaymentStatusPending,
		PaymentMethod:  orderapi.PaymentMethodOnline,
		CreatedAt:      mytime.ExampleTime,
	}
}

func storePendingOrder(t *testing.T, c context.Context, orderStore mystore.Store[orderapi.Order], uid string) {
	t.Helper()
	assert.NoError(t, orderStore.Put(c, uid, pendingOrder(uid)))
}

func doRequest(router *mux.Router, method string, url string, formBody string) *httptest.ResponseRecorder {
	var httpReq *http.Request
	if formBody != "" {
		httpReq = httptest.NewRequest(method, fmt.Sprintf("http://localhost:8080%s", url), strings.NewReader(formBody))
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		httpReq = httptest.NewRequest(method, fmt.Sprintf("http://localhost:8080%s", url), nil)
	}
	httpResp := httptest.NewRecorder()
	router.ServeHTTP(httpResp, httpReq)

	return httpResp
}

func doWebhook(router *mux.Router, url string, payload string, signature string) *httptest.ResponseRecorder {
	httpReq := httptest.NewRequest("POST", fmt.Sprintf("http://localhost:8080%s", url), bytes.NewReader([]byte(payload)))
	httpReq.Header.Set("Stripe-Signature", signature)
	httpResp := httptest.NewRecorder()
	router.ServeHTTP(httpResp, httpReq)

	return httpResp
}
