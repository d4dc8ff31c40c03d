package payment

import (
	"context"

	"github.com/sweetoven/bakeshop/services/orderapi"
)

// PaymentOutcome is the provider-neutral result of a payment notification.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess PaymentOutcome = "success"
	PaymentOutcomeFailed  PaymentOutcome = "failed"
	PaymentOutcomePending PaymentOutcome = "pending"
)

// ProviderHandle is what a provider gives back when a transaction is created.
type ProviderHandle struct {
	Provider       string
	TransactionRef string
	RedirectURL    string
}

// Notification is a verified provider callback. Implementations must only
// return one after establishing authenticity: Stripe by checking the webhook
// signature, Mollie by re-fetching the payment status server-to-server.
type Notification struct {
	OrderUID       string
	TransactionRef string
	Outcome        PaymentOutcome
	Details        string
}

//go:generate mockgen -source=payer.go -package payment -destination payer_mock.go Payer
type Payer interface {
	Name() string
	CreateTransaction(c context.Context, order orderapi.Order, returnURL string) (ProviderHandle, error)
	VerifyNotification(c context.Context, payload []byte, signature string) (Notification, error)
}
