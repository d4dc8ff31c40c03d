package ordermanagement

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
	"github.com/sweetoven/bakeshop/services/orderevents"
)

type service struct {
	orderStore  mystore.Store[orderapi.Order]
	identifiers *identifierGenerator
	pricer      DeliveryPricer
	uploader    imageUploader
	publisher   mypublisher.Publisher
	nower       mytime.Nower
	logger      mylog.Logger
}

// imageUploader is the slice of imageupload.Uploader this service needs.
type imageUploader interface {
	Upload(c context.Context, imageBytes []byte, suggestedName string) (string, error)
}

func newService(orderStore mystore.Store[orderapi.Order], pricer DeliveryPricer, uploader imageUploader,
	publisher mypublisher.Publisher, nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		orderStore:  orderStore,
		identifiers: newIdentifierGenerator(orderStore, nower, logger),
		pricer:      pricer,
		uploader:    uploader,
		publisher:   publisher,
		nower:       nower,
		logger:      logger,
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, orderevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", orderevents.TopicName, err)
	}

	return nil
}

// assemble turns a validated cart plus checkout details into a persisted
// pending order. Pending customization images are uploaded first, so the
// stored order only ever references durable urls.
func (s *service) assemble(c context.Context, cart orderapi.Cart, form orderapi.CheckoutForm, method orderapi.PaymentMethod) (orderapi.Order, error) {
	err := cart.Validate()
	if err != nil {
		return orderapi.Order{}, myerrors.NewInvalidInputError(err)
	}

	problems := form.Validate()
	if len(problems) > 0 {
		return orderapi.Order{}, myerrors.NewInvalidInputErrorf("invalid checkout details: %v", problems)
	}

	if method == "" {
		method = orderapi.PaymentMethodOnline
	}
	if method != orderapi.PaymentMethodOnline && method != orderapi.PaymentMethodCOD {
		return orderapi.Order{}, myerrors.NewInvalidInputErrorf("unknown payment method %s", method)
	}

	items := s.freezeItems(c, cart)

	subtotal := cart.Subtotal()
	deliveryCharge := s.pricer.Charge(form.Area, subtotal)
	now := s.nower.Now()

	order := orderapi.Order{
		Items:          items,
		Customer:       customerInfoFromForm(form),
		Subtotal:       subtotal,
		DeliveryCharge: deliveryCharge,
		TotalAmount:    subtotal + deliveryCharge,
		OrderStatus:    orderapi.OrderStatusPending,
		PaymentStatus:  orderapi.PaymentStatusPending,
		PaymentMethod:  method,
		CreatedAt:      now,
	}

	// The generated uid embeds a daily sequence that two concurrent checkouts
	// can both arrive at. Insert transactionally and retry once with a fresh
	// uid: the collision itself bumps the count the next uid is derived from.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		order.UID = s.identifiers.Generate(c)

		lastErr = s.orderStore.RunInTransaction(c, func(c context.Context) error {
			_, exists, err := s.orderStore.Get(c, order.UID)
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error checking for existing order %s: %s", order.UID, err))
			}
			if exists {
				return myerrors.NewConflictError(fmt.Errorf("order %s already exists", order.UID))
			}

			err = s.orderStore.Put(c, order.UID, order)
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", order.UID, err))
			}

			err = s.publisher.Publish(c, orderevents.TopicName, orderevents.OrderCreated{
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
				return myerrors.NewInternalError(fmt.Errorf("error publishing event for order %s: %s", order.UID, err))
			}

			return nil
		})
		if lastErr == nil {
			s.logger.Log(c, order.UID, mylog.SeverityInfo, "Assembled order %s: %d items, total %d", order.UID, len(order.Items), order.TotalAmount)
			return order, nil
		}
		if myerrors.GetHTTPStatus(lastErr) != http.StatusConflict {
			return orderapi.Order{}, lastErr
		}
		s.logger.Log(c, order.UID, mylog.SeverityWarn, "Order uid %s collided, retrying with fresh uid", order.UID)
	}

	return orderapi.Order{}, lastErr
}

// freezeItems copies cart items into order items, resolving any pending
// customization images along the way. Uploads run concurrently, one goroutine
// per pending image, each writing its own slot in the result slice. A failed
// upload degrades that item's image to failed instead of failing the order.
func (s *service) freezeItems(c context.Context, cart orderapi.Cart) []orderapi.OrderItem {
	items := make([]orderapi.OrderItem, len(cart.Items))

	wg := sync.WaitGroup{}
	for idx, cartItem := range cart.Items {
		items[idx] = orderapi.OrderItem{
			ProductUID:    cartItem.ProductUID,
			Name:          cartItem.Name,
			UnitPrice:     cartItem.EffectiveUnitPrice(),
			Quantity:      cartItem.Quantity,
			WeightVariant: cartItem.WeightVariant,
			ImageURL:      cartItem.ImageURL,
			Customization: frozenCustomization(cartItem.Customization),
		}

		if cartItem.Customization.Kind != orderapi.CustomizationPhotoCake ||
			cartItem.Customization.Image.State != orderapi.ImageStatePending {
			continue
		}

		if len(cartItem.Customization.Image.PendingBytes) == 0 {
			// bytes lost between client and assembly must not end up as a
			// successful upload of an empty image
			s.logger.Log(c, "", mylog.SeverityWarn, "Pending customization image %s has no bytes, marking failed",
				cartItem.Customization.Image.SuggestedName)
			items[idx].Customization.Image = orderapi.ImageState{
				State:         orderapi.ImageStateFailed,
				SuggestedName: cartItem.Customization.Image.SuggestedName,
			}
			continue
		}

		wg.Add(1)
		go func(idx int, image orderapi.ImageState) {
			defer wg.Done()

			url, err := s.uploader.Upload(c, image.PendingBytes, image.SuggestedName)
			if err != nil {
				s.logger.Log(c, "", mylog.SeverityWarn, "Upload of customization image %s failed: %s", image.SuggestedName, err)
				items[idx].Customization.Image = orderapi.ImageState{
					State:         orderapi.ImageStateFailed,
					SuggestedName: image.SuggestedName,
				}
				return
			}

			items[idx].Customization.Image = orderapi.ImageState{
				State:         orderapi.ImageStateUploaded,
				SuggestedName: image.SuggestedName,
				URL:           url,
			}
		}(idx, cartItem.Customization.Image)
	}
	wg.Wait()

	return items
}

// frozenCustomization strips raw pending bytes: persisted orders reference
// urls only. Pending images are overwritten with the upload outcome.
func frozenCustomization(cust orderapi.Customization) orderapi.Customization {
	if cust.Kind != orderapi.CustomizationPhotoCake {
		return orderapi.Customization{}
	}

	return orderapi.Customization{
		Kind:    cust.Kind,
		Message: cust.Message,
		Image: orderapi.ImageState{
			State:         cust.Image.State,
			SuggestedName: cust.Image.SuggestedName,
			URL:           cust.Image.URL,
		},
	}
}

func customerInfoFromForm(form orderapi.CheckoutForm) orderapi.CustomerInfo {
	return orderapi.CustomerInfo{
		FullName:            form.FullName,
		Email:               form.Email,
		Mobile:              form.Mobile,
		Address:             form.Address,
		Area:                form.Area,
		PinCode:             form.PinCode,
		Landmark:            form.Landmark,
		DeliveryDate:        form.DeliveryDate,
		DeliveryType:        form.DeliveryType,
		TimeSlot:            form.TimeSlot,
		Occasion:            form.Occasion,
		Relation:            form.Relation,
		SenderName:          form.SenderName,
		CardMessage:         form.CardMessage,
		SpecialInstructions: form.SpecialInstructions,
	}
}

func (s *service) getOrder(c context.Context, orderUID string) (orderapi.Order, error) {
	order, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return orderapi.Order{}, myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
	}
	if !found {
		return orderapi.Order{}, myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderUID))
	}

	return order, nil
}

func (s *service) listOrders(c context.Context) ([]orderapi.Order, error) {
	orders, err := s.orderStore.List(c)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error fetching orders: %s", err))
	}

	// TODO sort in database
	sort.Slice(orders, func(i, j int) bool {
		return orders[j].CreatedAt.Before(orders[i].CreatedAt)
	})

	return orders, nil
}

// progressStatus moves an order one step along the fulfilment chain.
// Payment fields are untouched: payment transitions belong to the payment service.
func (s *service) progressStatus(c context.Context, orderUID string, next orderapi.OrderStatus) (orderapi.Order, error) {
	if !next.IsValid() {
		return orderapi.Order{}, myerrors.NewInvalidInputErrorf("unknown order status %s", next)
	}

	var order orderapi.Order
	err := s.orderStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		order, found, err = s.orderStore.Get(c, orderUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order %s not found", orderUID))
		}

		if !order.OrderStatus.CanTransitionTo(next) {
			return myerrors.NewInvalidInputErrorf("order %s cannot move from %s to %s", orderUID, order.OrderStatus, next)
		}

		now := s.nower.Now()
		order.OrderStatus = next
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

	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Order %s moved to status %s", orderUID, next)

	return order, nil
}
