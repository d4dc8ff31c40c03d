package orderapi

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// nextOrderStatuses is the fulfilment chain. Cancelled is reachable from any
// non-terminal status.
var nextOrderStatuses = map[OrderStatus]OrderStatus{
	OrderStatusPending:        OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusPreparing,
	OrderStatusPreparing:      OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == OrderStatusDelivered || s == OrderStatusCancelled {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}

	return nextOrderStatuses[s] == next
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}

	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
)

type CustomerInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`

	Address  string `json:"address"`
	Area     string `json:"area"`
	PinCode  string `json:"pinCode"`
	Landmark string `json:"landmark,omitempty"`

	DeliveryDate string `json:"deliveryDate"`
	DeliveryType string `json:"deliveryType"`
	TimeSlot     string `json:"timeSlot"`

	Occasion            string `json:"occasion,omitempty"`
	Relation            string `json:"relation,omitempty"`
	SenderName          string `json:"senderName,omitempty"`
	CardMessage         string `json:"cardMessage,omitempty"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

// OrderItem is a frozen copy of a CartItem. Its customization image is always
// uploaded or failed, never pending, and never carries raw bytes.
type OrderItem struct {
	ProductUID    string        `json:"productUid"`
	Name          string        `json:"name"`
	UnitPrice     int64         `json:"unitPrice"`
	Quantity      int           `json:"quantity"`
	WeightVariant string        `json:"weightVariant,omitempty"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	Customization Customization `json:"customization,omitempty"`
}

type Order struct {
	UID   string      `json:"uid"`
	Items []OrderItem `json:"items"`

	Customer CustomerInfo `json:"customer"`

	Subtotal       int64 `json:"subtotal"`
	DeliveryCharge int64 `json:"deliveryCharge"`
	TotalAmount    int64 `json:"totalAmount"`

	OrderStatus     OrderStatus   `json:"orderStatus"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	PaymentProvider string        `json:"paymentProvider,omitempty"`
	ProviderRef     string        `json:"providerRef,omitempty"`

	CreatedAt          time.Time  `json:"createdAt"`
	LastModified       *time.Time `json:"lastModified,omitempty"`
	PaymentCompletedAt *time.Time `json:"paymentCompletedAt,omitempty"`
}

// Summary is a short human-readable description for notifications.
func (o Order) Summary() string {
	if len(o.Items) == 0 {
		return o.UID
	}

	summary := o.Items[0].Name
	if len(o.Items) > 1 {
		summary += " and more"
	}

	return summary
}
