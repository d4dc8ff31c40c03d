package payment

import (
	"context"
	"fmt"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
	"github.com/sweetoven/bakeshop/services/orderevents"
)

type service struct {
	orderStore mystore.Store[orderapi.Order]
	payers     map[string]Payer
	publisher  mypublisher.Publisher
	nower      mytime.Nower
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(orderStore mystore.Store[orderapi.Order], payers []Payer, publisher mypublisher.Publisher,
	nower mytime.Nower, logger mylog.Logger) *service {
	payersByName := map[string]Payer{}
	for _, payer := range payers {
		payersByName[payer.Name()] = payer
	}

	return &service{
		orderStore: orderStore,
		payers:     payersByName,
		publisher:  publisher,
		nower:      nower,
		logger:     logger,
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, orderevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", orderevents.TopicName, err)
	}

	return nil
}

type initiationResult struct {
	OrderUID      string                 `json:"orderUid"`
	OrderStatus   orderapi.OrderStatus   `json:"orderStatus"`
	PaymentStatus orderapi.PaymentStatus `json:"paymentStatus"`
	RedirectURL   string                 `json:"redirectUrl,omitempty"`
}

// initiate starts payment for a pending order. Cash-on-delivery confirms the
// order on the spot; online payment creates a provider transaction and hands
// back the redirect url. A new initiation is allowed as long as the order is
// unpaid, so an abandoned online attempt can be retried.
func (s *service) initiate(c context.Context, orderUID string, method orderapi.PaymentMethod, providerName string, returnURL string) (initiationResult, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Initiate %s payment for order %s", method, orderUID)

	order, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return initiationResult{}, myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
	}
	if !found {
		return initiationResult{}, myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderUID))
	}
	if order.PaymentStatus == orderapi.PaymentStatusPaid {
		return initiationResult{}, myerrors.NewConflictError(fmt.Errorf("order %s is already paid", orderUID))
	}

	switch method {
	case orderapi.PaymentMethodCOD:
		return s.initiateCashOnDelivery(c, orderUID)
	case orderapi.PaymentMethodOnline:
		return s.initiateOnline(c, order, providerName, returnURL)
	default:
		return initiationResult{}, myerrors.NewInvalidInputErrorf("unknown payment method %s", method)
	}
}

func (s *service) initiateCashOnDelivery(c context.Context, orderUID string) (initiationResult, error) {
	now := s.nower.Now()

	var order orderapi.Order
	err := s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		var found bool
		var err error
		order, found, err = s.orderStore.Get(c, orderUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderUID))
		}

		order.PaymentMethod = orderapi.PaymentMethodCOD
		order.PaymentProvider = ""
		order.ProviderRef = ""
		order.LastModified = &now

		alreadyConfirmed := order.OrderStatus != orderapi.OrderStatusPending
		if !alreadyConfirmed {
			order.OrderStatus = orderapi.OrderStatusConfirmed
		}

		err = s.orderStore.Put(c, orderUID, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", orderUID, err))
		}

		if alreadyConfirmed {
			// nothing new to announce
			return nil
		}

		err = s.publisher.Publish(c, orderevents.TopicName, orderevents.OrderConfirmed{
			OrderUID:       order.UID,
			CustomerName:   order.Customer.FullName,
			CustomerMobile: order.Customer.Mobile,
			TotalAmount:    order.TotalAmount,
			ItemSummary:    order.Summary(),
			DeliveryDate:   order.Customer.DeliveryDate,
			TimeSlot:       order.Customer.TimeSlot,
			PaymentMethod:  string(order.PaymentMethod),
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return initiationResult{}, err
	}

	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Order %s confirmed for cash on delivery", orderUID)

	return initiationResult{
		OrderUID:      order.UID,
		OrderStatus:   order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
	}, nil
}

func (s *service) initiateOnline(c context.Context, order orderapi.Order, providerName string, returnURL string) (initiationResult, error) {
	payer, found := s.payers[providerName]
	if !found {
		return initiationResult{}, myerrors.NewInvalidInputErrorf("unknown payment provider %s", providerName)
	}

	handle, err := payer.CreateTransaction(c, order, returnURL)
	if err != nil {
		return initiationResult{}, err
	}

	now := s.nower.Now()
	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		order, exists, err := s.orderStore.Get(c, order.UID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", order.UID, err))
		}
		if !exists {
			return myerrors.NewNotFoundError(fmt.Errorf("order %s not found", order.UID))
		}

		// a fresh attempt supersedes a previous abandoned one
		order.PaymentMethod = orderapi.PaymentMethodOnline
		order.PaymentProvider = handle.Provider
		order.ProviderRef = handle.TransactionRef
		order.LastModified = &now

		err = s.orderStore.Put(c, order.UID, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", order.UID, err))
		}

		return nil
	})
	if err != nil {
		return initiationResult{}, err
	}

	s.logger.Log(c, order.UID, mylog.SeverityInfo, "Created %s transaction %s for order %s", handle.Provider, handle.TransactionRef, order.UID)

	return initiationResult{
		OrderUID:      order.UID,
		OrderStatus:   order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
		RedirectURL:   handle.RedirectURL,
	}, nil
}

// processNotification applies a verified provider callback to the order.
// Providers redeliver webhooks, so the pending-to-paid transition is guarded:
// an order that is already paid is acknowledged without a second state change
// or a second event.
func (s *service) processNotification(c context.Context, providerName string, payload []byte, signature string) error {
	payer, found := s.payers[providerName]
	if !found {
		return myerrors.NewInvalidInputErrorf("unknown payment provider %s", providerName)
	}

	notification, err := payer.VerifyNotification(c, payload, signature)
	if err != nil {
		// verification failed: order state must remain untouched
		return err
	}

	s.logger.Log(c, notification.OrderUID, mylog.SeverityInfo, "Webhook: %s reports %s for order %s", providerName, notification.Outcome, notification.OrderUID)

	if notification.OrderUID == "" {
		return myerrors.NewInvalidInputErrorf("notification without order reference")
	}
	if notification.Outcome == PaymentOutcomePending {
		// intermediate status, nothing to record yet
		return nil
	}

	now := s.nower.Now()

	return s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		order, found, err := s.orderStore.Get(c, notification.OrderUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", notification.OrderUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order %s not found", notification.OrderUID))
		}

		if order.PaymentStatus == orderapi.PaymentStatusPaid {
			// duplicate delivery or late failure after success: keep paid
			return nil
		}

		order.PaymentProvider = providerName
		order.ProviderRef = notification.TransactionRef
		order.LastModified = &now

		if notification.Outcome == PaymentOutcomeFailed {
			order.PaymentStatus = orderapi.PaymentStatusFailed

			err = s.orderStore.Put(c, order.UID, order)
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", order.UID, err))
			}

			return s.publisher.Publish(c, orderevents.TopicName, orderevents.OrderPaymentFailed{
				OrderUID:        order.UID,
				CustomerMobile:  order.Customer.Mobile,
				PaymentProvider: providerName,
				Details:         notification.Details,
			})
		}

		order.PaymentStatus = orderapi.PaymentStatusPaid
		order.PaymentCompletedAt = &now
		if order.OrderStatus == orderapi.OrderStatusPending {
			order.OrderStatus = orderapi.OrderStatusConfirmed
		}

		err = s.orderStore.Put(c, order.UID, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", order.UID, err))
		}

		return s.publisher.Publish(c, orderevents.TopicName, orderevents.OrderPaid{
			OrderUID:        order.UID,
			CustomerName:    order.Customer.FullName,
			CustomerMobile:  order.Customer.Mobile,
			TotalAmount:     order.TotalAmount,
			ItemSummary:     order.Summary(),
			PaymentMethod:   string(order.PaymentMethod),
			PaymentProvider: providerName,
		})
	})
}

// confirmCashReceived marks a cash-on-delivery order as paid once the courier
// hands over the cake and collects the money.
func (s *service) confirmCashReceived(c context.Context, orderUID string) (orderapi.Order, error) {
	now := s.nower.Now()

	var order orderapi.Order
	err := s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		var found bool
		var err error
		order, found, err = s.orderStore.Get(c, orderUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderUID))
		}

		if order.PaymentMethod != orderapi.PaymentMethodCOD {
			return myerrors.NewInvalidInputErrorf("order %s is not cash on delivery", orderUID)
		}
		if order.PaymentStatus == orderapi.PaymentStatusPaid {
			return nil
		}

		order.PaymentStatus = orderapi.PaymentStatusPaid
		order.PaymentCompletedAt = &now
		order.LastModified = &now

		err = s.orderStore.Put(c, orderUID, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", orderUID, err))
		}

		return nil
	})
	if err != nil {
		return orderapi.Order{}, err
	}

	return order, nil
}

// paymentStatus backs the page the shopper lands on after the provider redirect.
func (s *service) paymentStatus(c context.Context, orderUID string) (initiationResult, error) {
	order, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return initiationResult{}, myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
	}
	if !found {
		return initiationResult{}, myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderUID))
	}

	return initiationResult{
		OrderUID:      order.UID,
		OrderStatus:   order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
	}, nil
}
