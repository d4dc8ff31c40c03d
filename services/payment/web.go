package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweetoven/bakeshop/lib/mycontext"
	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/myhttp"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(orderStore mystore.Store[orderapi.Order], payers []Payer, publisher mypublisher.Publisher, nower mytime.Nower) *webService {
	logger := mylog.New("payment")
	return &webService{
		logger:  logger,
		service: newService(orderStore, payers, publisher, nower, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.CreateTopics(c)
	if err != nil {
		return fmt.Errorf("error creating topics: %s", err)
	}

	router.HandleFunc("/api/order/{orderUID}/payment/{method}", s.initiatePaymentPage()).Methods("POST")
	router.HandleFunc("/api/order/{orderUID}/cod/paid", s.cashReceivedPage()).Methods("PUT")
	router.HandleFunc("/payment/webhook/{provider}", s.webhookPage()).Methods("POST")
	router.HandleFunc("/payment/return/{orderUID}", s.paymentReturnPage()).Methods("GET")

	return nil
}

func (s *webService) initiatePaymentPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]
		method := orderapi.PaymentMethod(mux.Vars(r)["method"])
		if orderUID == "" {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("missing orderUID")))
			return
		}

		err := r.ParseForm()
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}
		providerName := r.Form.Get("provider")
		if providerName == "" {
			providerName = stripeProviderName
		}
		returnURL := r.Form.Get("returnUrl")
		if returnURL == "" {
			returnURL = myhttp.HostnameWithScheme(r) + fmt.Sprintf("/payment/return/%s", orderUID)
		}

		result, err := s.service.initiate(c, orderUID, method, providerName, returnURL)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, result)
	}
}

func (s *webService) cashReceivedPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]

		order, err := s.service.confirmCashReceived(c, orderUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func (s *webService) webhookPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		providerName := mux.Vars(r)["provider"]

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error reading request: %s", err)))
			return
		}

		err = s.service.processNotification(c, providerName, payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{})
	}
}

func (s *webService) paymentReturnPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]

		result, err := s.service.paymentStatus(c, orderUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, result)
	}
}
