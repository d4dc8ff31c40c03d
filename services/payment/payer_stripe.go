package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

const stripeProviderName = "stripe"

type stripePayer struct {
	webhookSecret string
}

func NewStripePayer(apiKey string, webhookSecret string) Payer {
	stripe.Key = apiKey
	return &stripePayer{
		webhookSecret: webhookSecret,
	}
}

func (p *stripePayer) Name() string {
	return stripeProviderName
}

func (p *stripePayer) CreateTransaction(c context.Context, order orderapi.Order, returnURL string) (ProviderHandle, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("inr"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				// stripe wants the minor unit, prices are stored in rupees
				UnitAmount: stripe.Int64(item.UnitPrice * 100),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	if order.DeliveryCharge > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("inr"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Delivery"),
				},
				UnitAmount: stripe.Int64(order.DeliveryCharge * 100),
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(fmt.Sprintf("%s?status=success", returnURL)),
		CancelURL:         stripe.String(fmt.Sprintf("%s?status=cancelled", returnURL)),
		ClientReferenceID: stripe.String(order.UID),
		CustomerEmail:     stripe.String(order.Customer.Email),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		Currency:          stripe.String("inr"),
		LineItems:         lineItems,
	}

	sess, err := session.New(&params)
	if err != nil {
		return ProviderHandle{}, myerrors.NewInvalidInputError(fmt.Errorf("error creating stripe session: %s", err))
	}

	return ProviderHandle{
		Provider:       stripeProviderName,
		TransactionRef: sess.ID,
		RedirectURL:    sess.URL,
	}, nil
}

// VerifyNotification checks the webhook signature before believing anything
// in the payload. A bad signature is an authentication failure, not a payment
// failure.
func (p *stripePayer) VerifyNotification(c context.Context, payload []byte, signature string) (Notification, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return Notification{}, myerrors.NewAuthenticationError(fmt.Errorf("webhook signature verification failed: %s", err))
	}

	sess := stripe.CheckoutSession{}
	err = json.Unmarshal(event.Data.Raw, &sess)
	if err != nil {
		return Notification{}, myerrors.NewInvalidInputError(fmt.Errorf("error parsing webhook payload: %s", err))
	}

	notification := Notification{
		OrderUID:       sess.ClientReferenceID,
		TransactionRef: sess.ID,
		Details:        string(event.Type),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		notification.Outcome = PaymentOutcomeSuccess
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		notification.Outcome = PaymentOutcomeFailed
	default:
		notification.Outcome = PaymentOutcomePending
	}

	return notification, nil
}
