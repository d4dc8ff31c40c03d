package orderevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/myevents"
)

const (
	TopicName              = "order"
	orderCreatedName       = TopicName + ".created"
	orderConfirmedName     = TopicName + ".confirmed"
	orderPaidName          = TopicName + ".paid"
	orderPaymentFailedName = TopicName + ".paymentFailed"
)

type OrderEventService interface {
	Subscribe(c context.Context) error
	OnOrderCreated(c context.Context, topic string, event OrderCreated) error
	OnOrderConfirmed(c context.Context, topic string, event OrderConfirmed) error
	OnOrderPaid(c context.Context, topic string, event OrderPaid) error
	OnOrderPaymentFailed(c context.Context, topic string, event OrderPaymentFailed) error
}

func DispatchEvent(c context.Context, reader io.Reader, service OrderEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case orderCreatedName:
		{
			event := OrderCreated{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOrderCreated(c, envelope.Topic, event)
		}
	case orderConfirmedName:
		{
			event := OrderConfirmed{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOrderConfirmed(c, envelope.Topic, event)
		}
	case orderPaidName:
		{
			event := OrderPaid{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOrderPaid(c, envelope.Topic, event)
		}
	case orderPaymentFailedName:
		{
			event := OrderPaymentFailed{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOrderPaymentFailed(c, envelope.Topic, event)
		}
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("unknown event type %s", envelope.EventTypeName))
	}
}

// OrderCreated is published when order assembly has persisted a new pending order.
type OrderCreated struct {
	OrderUID       string
	CustomerName   string
	CustomerMobile string
	TotalAmount    int64
	ItemSummary    string
	DeliveryDate   string
	TimeSlot       string
	PaymentMethod  string
}

func (e OrderCreated) GetEventTypeName() string {
	return orderCreatedName
}

func (e OrderCreated) GetAggregateName() string {
	return e.OrderUID
}

// OrderConfirmed is published when a cash-on-delivery order is accepted.
type OrderConfirmed struct {
	OrderUID       string
	CustomerName   string
	CustomerMobile string
	TotalAmount    int64
	ItemSummary    string
	DeliveryDate   string
	TimeSlot       string
	PaymentMethod  string
}

func (e OrderConfirmed) GetEventTypeName() string {
	return orderConfirmedName
}

func (e OrderConfirmed) GetAggregateName() string {
	return e.OrderUID
}

// OrderPaid is published exactly once per order, on the pending-to-paid transition.
type OrderPaid struct {
	OrderUID        string
	CustomerName    string
	CustomerMobile  string
	TotalAmount     int64
	ItemSummary     string
	PaymentMethod   string
	PaymentProvider string
}

func (e OrderPaid) GetEventTypeName() string {
	return orderPaidName
}

func (e OrderPaid) GetAggregateName() string {
	return e.OrderUID
}

type OrderPaymentFailed struct {
	OrderUID        string
	CustomerMobile  string
	PaymentProvider string
	Details         string
}

func (e OrderPaymentFailed) GetEventTypeName() string {
	return orderPaymentFailedName
}

func (e OrderPaymentFailed) GetAggregateName() string {
	return e.OrderUID
}
