package ordermanagement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/myratelimit"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/imageupload"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

func TestCreateOrderEndpoint(t *testing.T) {
	router, _ := setupWebService(t)

	request := createOrderRequest{
		Cart: cartWithSubtotal(500),
		Form: validForm,
	}
	body, _ := json.Marshal(request)

	httpResp := doRequest(router, "POST", "/api/order", bytes.NewReader(body))

	assert.Equal(t, http.StatusOK, httpResp.Code)
	order := orderapi.Order{}
	err := json.Unmarshal(httpResp.Body.Bytes(), &order)
	assert.NoError(t, err)
	assert.Equal(t, "SO20260828001", order.UID)
	assert.Equal(t, int64(560), order.TotalAmount)
}

func TestCreateOrderEndpointRejectsGarbage(t *testing.T) {
	router, _ := setupWebService(t)

	httpResp := doRequest(router, "POST", "/api/order", bytes.NewReader([]byte("not json")))

	assert.Equal(t, http.StatusBadRequest, httpResp.Code)
}

func TestCreateOrderEndpointRateLimitsPerMobile(t *testing.T) {
	router, _ := setupWebService(t)

	request := createOrderRequest{
		Cart: cartWithSubtotal(500),
		Form: validForm,
	}
	body, _ := json.Marshal(request)

	for i := 0; i < 3; i++ {
		httpResp := doRequest(router, "POST", "/api/order", bytes.NewReader(body))
		assert.Equal(t, http.StatusOK, httpResp.Code)
	}

	httpResp := doRequest(router, "POST", "/api/order", bytes.NewReader(body))
	assert.Equal(t, http.StatusTooManyRequests, httpResp.Code)

	// a different customer is not affected
	otherForm := validForm
	otherForm.Mobile = "9123456780"
	otherBody, _ := json.Marshal(createOrderRequest{Cart: cartWithSubtotal(500), Form: otherForm})
	httpResp = doRequest(router, "POST", "/api/order", bytes.NewReader(otherBody))
	assert.Equal(t, http.StatusOK, httpResp.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	router, orderStore := setupWebService(t)

	err := orderStore.Put(context.Background(), "SO20260828042", orderapi.Order{
		UID:         "SO20260828042",
		TotalAmount: 750,
	})
	assert.NoError(t, err)

	httpResp := doRequest(router, "GET", "/api/order/SO20260828042", nil)

	assert.Equal(t, http.StatusOK, httpResp.Code)
	order := orderapi.Order{}
	err = json.Unmarshal(httpResp.Body.Bytes(), &order)
	assert.NoError(t, err)
	assert.Equal(t, int64(750), order.TotalAmount)
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	router, _ := setupWebService(t)

	httpResp := doRequest(router, "GET", "/api/order/SO20260828999", nil)

	assert.Equal(t, http.StatusNotFound, httpResp.Code)
}

func TestListOrdersEndpointNewestFirst(t *testing.T) {
	router, orderStore := setupWebService(t)

	c := context.Background()
	older := mytime.ExampleTime.Add(-2 * time.Hour)
	assert.NoError(t, orderStore.Put(c, "SO20260828001", orderapi.Order{UID: "SO20260828001", CreatedAt: older}))
	assert.NoError(t, orderStore.Put(c, "SO20260828002", orderapi.Order{UID: "SO20260828002", CreatedAt: mytime.ExampleTime}))

	httpResp := doRequest(router, "GET", "/api/orders", nil)

	assert.Equal(t, http.StatusOK, httpResp.Code)
	orders := []orderapi.Order{}
	err := json.Unmarshal(httpResp.Body.Bytes(), &orders)
	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, "SO20260828002", orders[0].UID)
	assert.Equal(t, "SO20260828001", orders[1].UID)
}

func TestOrderStatusEndpoint(t *testing.T) {
	router, orderStore := setupWebService(t)

	c := context.Background()
	assert.NoError(t, orderStore.Put(c, "SO20260828001", orderapi.Order{
		UID:         "SO20260828001",
		OrderStatus: orderapi.OrderStatusConfirmed,
	}))

	httpResp := doRequest(router, "PUT", "/api/order/SO20260828001/status/preparing", nil)

	assert.Equal(t, http.StatusOK, httpResp.Code)
	order := orderapi.Order{}
	err := json.Unmarshal(httpResp.Body.Bytes(), &order)
	assert.NoError(t, err)
	assert.Equal(t, orderapi.OrderStatusPreparing, order.OrderStatus)
}

func TestOrderStatusEndpointRejectsSkippingAhead(t *testing.T) {
	router, orderStore := setupWebService(t)

	c := context.Background()
	assert.NoError(t, orderStore.Put(c, "SO20260828001", orderapi.Order{
		UID:         "SO20260828001",
		OrderStatus: orderapi.OrderStatusPending,
	}))

	httpResp := doRequest(router, "PUT", "/api/order/SO20260828001/status/delivered", nil)

	assert.Equal(t, http.StatusBadRequest, httpResp.Code)
}

func setupWebService(t *testing.T) (*mux.Router, mystore.Store[orderapi.Order]) {
	t.Helper()

	ctrl := gomock.NewController(t)
	c := context.Background()

	orderStore, _, err := mystore.NewInMemoryStore[orderapi.Order](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().CreateTopic(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	limiter := myratelimit.New(nower, 3, 10*time.Minute)

	webService := NewWebService(orderStore, NewDeliveryPricer(), imageupload.NewMockUploader(ctrl), publisher, limiter, nower)

	router := mux.NewRouter()
	err = webService.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return router, orderStore
}

func doRequest(router *mux.Router, method string, url string, body *bytes.Reader) *httptest.ResponseRecorder {
	var httpReq *http.Request
	if body == nil {
		httpReq = httptest.NewRequest(method, fmt.Sprintf("http://localhost:8080%s", url), nil)
	} else {
		httpReq = httptest.NewRequest(method, fmt.Sprintf("http://localhost:8080%s", url), body)
	}
	httpResp := httptest.NewRecorder()
	router.ServeHTTP(httpResp, httpReq)

	return httpResp
}
