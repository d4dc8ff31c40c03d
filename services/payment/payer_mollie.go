package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/VictorAvelar/mollie-api-go/v3/mollie"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

const mollieProviderName = "mollie"

type molliePayer struct {
	client *mollie.Client
}

func NewMolliePayer(apiKey string) (Payer, error) {
	config := mollie.NewAPITestingConfig(true)

	client, err := mollie.NewClient(nil, config)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error creating mollie client: %s", err))
	}

	err = client.WithAuthenticationValue(apiKey)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error authenticating mollie client: %s", err))
	}

	return &molliePayer{
		client: client,
	}, nil
}

func (p *molliePayer) Name() string {
	return mollieProviderName
}

func (p *molliePayer) CreateTransaction(c context.Context, order orderapi.Order, returnURL string) (ProviderHandle, error) {
	request := mollie.Payment{
		Amount: &mollie.Amount{
			Currency: "INR",
			Value:    fmt.Sprintf("%d.00", order.TotalAmount),
		},
		Description: fmt.Sprintf("Order %s: %s", order.UID, order.Summary()),
		RedirectURL: returnURL,
		Metadata: map[string]string{
			"orderUID": order.UID,
		},
	}

	_, payment, err := p.client.Payments.Create(c, request, nil)
	if err != nil {
		return ProviderHandle{}, myerrors.NewInvalidInputError(fmt.Errorf("error creating mollie payment: %s", err))
	}

	return ProviderHandle{
		Provider:       mollieProviderName,
		TransactionRef: payment.ID,
		RedirectURL:    payment.Links.Checkout.Href,
	}, nil
}

// VerifyNotification trusts nothing in the webhook body except the payment id:
// the authoritative status is re-fetched from the mollie platform over an
// authenticated connection.
func (p *molliePayer) VerifyNotification(c context.Context, payload []byte, signature string) (Notification, error) {
	paymentID, err := parseWebhookPaymentID(payload)
	if err != nil {
		return Notification{}, err
	}

	_, payment, err := p.client.Payments.Get(c, paymentID, &mollie.PaymentOptions{})
	if err != nil {
		return Notification{}, myerrors.NewAuthenticationError(fmt.Errorf("error fetching mollie payment %s: %s", paymentID, err))
	}

	return Notification{
		OrderUID:       orderUIDFromMetadata(payment.Metadata),
		TransactionRef: payment.ID,
		Outcome:        classifyMollieStatus(payment.Status),
		Details:        payment.Status,
	}, nil
}

// mollie posts an urlencoded body of the form "id=tr_xxx"
func parseWebhookPaymentID(payload []byte) (string, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(payload)))
	if err != nil {
		return "", myerrors.NewInvalidInputError(fmt.Errorf("error parsing webhook payload: %s", err))
	}

	paymentID := values.Get("id")
	if paymentID == "" {
		return "", myerrors.NewInvalidInputError(fmt.Errorf("webhook payload without payment id"))
	}

	return paymentID, nil
}

func orderUIDFromMetadata(metadata any) string {
	fields, ok := metadata.(map[string]any)
	if !ok {
		return ""
	}

	orderUID, _ := fields["orderUID"].(string)

	return orderUID
}

func classifyMollieStatus(mollieStatus string) PaymentOutcome {
	switch mollieStatus {
	case "paid":
		return PaymentOutcomeSuccess
	case "failed", "canceled", "expired":
		return PaymentOutcomeFailed
	default:
		return PaymentOutcomePending
	}
}
