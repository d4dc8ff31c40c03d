package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sweetoven/bakeshop/lib/myhttp"
	"github.com/sweetoven/bakeshop/lib/myhttpclient"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypubsub"
	"github.com/sweetoven/bakeshop/services/orderevents"
)

// WhatsAppConfig holds the Meta graph api coordinates for the business account.
type WhatsAppConfig struct {
	PhoneNumberID string
	AccessToken   string
	AdminMobile   string
}

// service turns order events into WhatsApp messages. Delivery is best-effort:
// a failed send is logged and dropped, it never fails the pipeline that
// produced the event.
type service struct {
	config     WhatsAppConfig
	httpSender myhttpclient.HTTPSender
	subscriber mypubsub.PubSub
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(config WhatsAppConfig, httpSender myhttpclient.HTTPSender, subscriber mypubsub.PubSub, logger mylog.Logger) *service {
	return &service{
		config:     config,
		httpSender: httpSender,
		subscriber: subscriber,
		logger:     logger,
	}
}

func (s *service) Subscribe(c context.Context) error {
	err := s.subscriber.CreateTopic(c, orderevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", orderevents.TopicName, err)
	}

	err = s.subscriber.Subscribe(c, orderevents.TopicName, myhttp.GuessHostnameWithScheme()+"/api/notification/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", orderevents.TopicName, err)
	}

	return nil
}

func (s *service) OnOrderCreated(c context.Context, topic string, event orderevents.OrderCreated) error {
	s.send(c, s.config.AdminMobile,
		fmt.Sprintf("New order %s: %s for ₹%d, delivery %s %s, payment %s",
			event.OrderUID, event.ItemSummary, event.TotalAmount, event.DeliveryDate, event.TimeSlot, event.PaymentMethod))

	return nil
}

func (s *service) OnOrderConfirmed(c context.Context, topic string, event orderevents.OrderConfirmed) error {
	s.send(c, event.CustomerMobile,
		fmt.Sprintf("Hi %s, your order %s is confirmed! %s will be delivered on %s between %s. Pay ₹%d on delivery.",
			event.CustomerName, event.OrderUID, event.ItemSummary, event.DeliveryDate, event.TimeSlot, event.TotalAmount))

	return nil
}

func (s *service) OnOrderPaid(c context.Context, topic string, event orderevents.OrderPaid) error {
	s.send(c, event.CustomerMobile,
		fmt.Sprintf("Hi %s, we received your payment of ₹%d for order %s. We are getting %s ready!",
			event.CustomerName, event.TotalAmount, event.OrderUID, event.ItemSummary))

	return nil
}

func (s *service) OnOrderPaymentFailed(c context.Context, topic string, event orderevents.OrderPaymentFailed) error {
	s.send(c, event.CustomerMobile,
		fmt.Sprintf("Your payment for order %s did not go through (%s). You can retry from your order page.",
			event.OrderUID, event.Details))

	return nil
}

type whatsAppMessage struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	Body string `json:"body"`
}

func (s *service) send(c context.Context, mobile string, message string) {
	if mobile == "" {
		s.logger.Log(c, "", mylog.SeverityWarn, "No mobile number to notify, dropping message")
		return
	}

	body, err := json.Marshal(whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               mobile,
		Type:             "text",
		Text:             whatsAppTextBody{Body: message},
	})
	if err != nil {
		s.logger.Log(c, "", mylog.SeverityError, "Error composing whatsapp message: %s", err)
		return
	}

	url := fmt.Sprintf("https://graph.facebook.com/v17.0/%s/messages", s.config.PhoneNumberID)
	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", s.config.AccessToken),
		"Content-Type":  "application/json",
	}

	status, _, err := s.httpSender.Send(c, http.MethodPost, url, headers, body)
	if err != nil {
		s.logger.Log(c, "", mylog.SeverityWarn, "Error sending whatsapp message to %s: %s", mobile, err)
		return
	}
	if status != http.StatusOK {
		s.logger.Log(c, "", mylog.SeverityWarn, "Whatsapp message to %s rejected with status %d", mobile, status)
		return
	}

	s.logger.Log(c, "", mylog.SeverityInfo, "Sent whatsapp message to %s", mobile)
}
