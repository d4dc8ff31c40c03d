package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweetoven/bakeshop/lib/mycontext"
	"github.com/sweetoven/bakeshop/lib/myhttp"
	"github.com/sweetoven/bakeshop/lib/myhttpclient"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypubsub"
	"github.com/sweetoven/bakeshop/services/orderevents"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(config WhatsAppConfig, httpSender myhttpclient.HTTPSender, subscriber mypubsub.PubSub) *webService {
	logger := mylog.New("notification")
	return &webService{
		logger:  logger,
		service: newService(config, httpSender, subscriber, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.Subscribe(c)
	if err != nil {
		return fmt.Errorf("error subscribing to events: %s", err)
	}

	router.HandleFunc("/api/notification/event", s.eventPage()).Methods("POST")

	return nil
}

func (s *webService) eventPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := orderevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{})
	}
}
