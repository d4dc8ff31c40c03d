package ordermanagement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/myhttp"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/myratelimit"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

type WebService struct {
	service *service
	limiter myratelimit.Limiter
	logger  mylog.Logger
}

func NewWebService(orderStore mystore.Store[orderapi.Order], pricer DeliveryPricer, uploader imageUploader,
	publisher mypublisher.Publisher, limiter myratelimit.Limiter, nower mytime.Nower) *WebService {
	logger := mylog.New("ordermanagement")
	return &WebService{
		service: newService(orderStore, pricer, uploader, publisher, nower, logger),
		limiter: limiter,
		logger:  logger,
	}
}

func (s *WebService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.CreateTopics(c)
	if err != nil {
		return fmt.Errorf("error creating topics: %s", err)
	}

	router.HandleFunc("/api/order", s.createOrderPage()).Methods("POST")
	router.HandleFunc("/api/order/{orderUID}", s.orderPage()).Methods("GET")
	router.HandleFunc("/api/orders", s.orderListPage()).Methods("GET")
	router.HandleFunc("/api/order/{orderUID}/status/{status}", s.orderStatusPage()).Methods("PUT")

	return nil
}

// Assemble exposes order assembly to collaborating services.
func (s *WebService) Assemble(c context.Context, cart orderapi.Cart, form orderapi.CheckoutForm, method orderapi.PaymentMethod) (orderapi.Order, error) {
	return s.service.assemble(c, cart, form, method)
}

// GetOrder exposes order lookup to collaborating services.
func (s *WebService) GetOrder(c context.Context, orderUID string) (orderapi.Order, error) {
	return s.service.getOrder(c, orderUID)
}

type createOrderRequest struct {
	Cart          orderapi.Cart          `json:"cart"`
	Form          orderapi.CheckoutForm  `json:"form"`
	PaymentMethod orderapi.PaymentMethod `json:"paymentMethod,omitempty"`
}

func (s *WebService) createOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := r.Context()
		errorWriter := myhttp.NewWriter(s.logger)

		request := createOrderRequest{}
		err := json.NewDecoder(r.Body).Decode(&request)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		// mobile number is the per-customer key: an anonymous checkout has no
		// better stable identity
		if !s.limiter.Allow(c, request.Form.Mobile) {
			errorWriter.WriteError(c, w, 2, myerrors.NewTooManyRequestsError(fmt.Errorf("too many orders placed, try again later")))
			return
		}

		order, err := s.service.assemble(c, request.Cart, request.Form, request.PaymentMethod)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func (s *WebService) orderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := r.Context()
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]
		if orderUID == "" {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("missing orderUID")))
			return
		}

		order, err := s.service.getOrder(c, orderUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func (s *WebService) orderListPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := r.Context()
		errorWriter := myhttp.NewWriter(s.logger)

		orders, err := s.service.listOrders(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, orders)
	}
}

func (s *WebService) orderStatusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := r.Context()
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]
		status := mux.Vars(r)["status"]
		if orderUID == "" || status == "" {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("missing orderUID or status")))
			return
		}

		order, err := s.service.progressStatus(c, orderUID, orderapi.OrderStatus(status))
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}
