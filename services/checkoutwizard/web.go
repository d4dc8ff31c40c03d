package checkoutwizard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweetoven/bakeshop/lib/mycontext"
	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/myhttp"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/lib/myuuid"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(wizardStore mystore.Store[WizardState], assembler OrderAssembler, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("checkoutwizard")
	return &webService{
		logger:  logger,
		service: newService(wizardStore, assembler, nower, uuider, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/checkout", s.startPage()).Methods("POST")
	router.HandleFunc("/api/checkout/{wizardUID}", s.statusPage()).Methods("GET")
	router.HandleFunc("/api/checkout/{wizardUID}/cart", s.cartPage()).Methods("PUT")
	router.HandleFunc("/api/checkout/{wizardUID}/details", s.detailsPage()).Methods("PUT")
	// classic form submit from the storefront, same semantics as the api variant
	router.HandleFunc("/checkout/{wizardUID}/details", s.detailsFormPage()).Methods("POST")
	router.HandleFunc("/api/checkout/{wizardUID}/proceed", s.proceedPage()).Methods("POST")
	router.HandleFunc("/api/checkout/{wizardUID}/back", s.backPage()).Methods("POST")
	router.HandleFunc("/api/checkout/{wizardUID}/complete", s.completePage()).Methods("POST")

	return nil
}

func (s *webService) startPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		wizard, err := s.service.start(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

func (s *webService) statusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		wizard, err := s.service.get(c, mux.Vars(r)["wizardUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

func (s *webService) cartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cart := orderapi.Cart{}
		err := json.NewDecoder(r.Body).Decode(&cart)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		wizard, err := s.service.saveCart(c, mux.Vars(r)["wizardUID"], cart)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

type detailsRequest struct {
	Form          orderapi.CheckoutForm  `json:"form"`
	PaymentMethod orderapi.PaymentMethod `json:"paymentMethod,omitempty"`
}

func (s *webService) detailsPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		request := detailsRequest{}
		err := json.NewDecoder(r.Body).Decode(&request)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		wizard, err := s.service.saveDetails(c, mux.Vars(r)["wizardUID"], request.Form, request.PaymentMethod)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

func (s *webService) detailsFormPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		form, err := orderapi.NewFormFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing form: %s", err)))
			return
		}
		method := orderapi.PaymentMethod(r.Form.Get("paymentMethod"))

		wizard, err := s.service.saveDetails(c, mux.Vars(r)["wizardUID"], form, method)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

func (s *webService) proceedPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		wizard, err := s.service.proceed(c, mux.Vars(r)["wizardUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

func (s *webService) backPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		wizard, err := s.service.back(c, mux.Vars(r)["wizardUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wizard)
	}
}

func (s *webService) completePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		order, err := s.service.complete(c, mux.Vars(r)["wizardUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}
