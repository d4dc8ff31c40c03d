package orderapi

import (
	"fmt"
	"strings"
)

const maxCakeMessageLength = 100

type CustomizationKind string

const (
	CustomizationNone      CustomizationKind = ""
	CustomizationPhotoCake CustomizationKind = "photo-cake"
)

type ImageStateKind string

const (
	ImageStateNone     ImageStateKind = ""
	ImageStatePending  ImageStateKind = "pending"
	ImageStateUploaded ImageStateKind = "uploaded"
	ImageStateFailed   ImageStateKind = "failed"
)

// Customization is a closed variant: either no customization at all, or a
// photo-cake with an image that is pending upload, uploaded, or failed.
type Customization struct {
	Kind    CustomizationKind `json:"kind"`
	Message string            `json:"message,omitempty"`
	Image   ImageState        `json:"image,omitempty"`
}

// ImageState tracks a customization photo through its upload lifecycle.
// PendingBytes travel from the client through checkout state until order
// assembly consumes them; a persisted Order carries uploaded/failed states
// without bytes.
type ImageState struct {
	State         ImageStateKind `json:"state,omitempty"`
	PendingBytes  []byte         `json:"pendingBytes,omitempty" datastore:",noindex"`
	SuggestedName string         `json:"suggestedName,omitempty"`
	URL           string         `json:"url,omitempty"`
}

type CartItem struct {
	ProductUID          string        `json:"productUid"`
	Name                string        `json:"name"`
	UnitPrice           int64         `json:"unitPrice"`
	DiscountedUnitPrice int64         `json:"discountedUnitPrice,omitempty"`
	Quantity            int           `json:"quantity"`
	WeightVariant       string        `json:"weightVariant,omitempty"`
	ImageURL            string        `json:"imageUrl,omitempty"`
	Customization       Customization `json:"customization,omitempty"`
}

// EffectiveUnitPrice is the discounted price when one is set.
func (i CartItem) EffectiveUnitPrice() int64 {
	if i.DiscountedUnitPrice > 0 {
		return i.DiscountedUnitPrice
	}

	return i.UnitPrice
}

type Cart struct {
	Items []CartItem `json:"items"`
}

func (c Cart) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("cart is empty")
	}

	for _, item := range c.Items {
		if item.ProductUID == "" {
			return fmt.Errorf("cart item without product reference")
		}
		if item.Quantity < 1 {
			return fmt.Errorf("cart item %s has quantity %d", item.ProductUID, item.Quantity)
		}
		if item.UnitPrice <= 0 {
			return fmt.Errorf("cart item %s has no price", item.ProductUID)
		}
		if item.Customization.Kind == CustomizationPhotoCake {
			if len(item.Customization.Message) > maxCakeMessageLength {
				return fmt.Errorf("cake message for item %s exceeds %d characters", item.ProductUID, maxCakeMessageLength)
			}
		}
	}

	return nil
}

func (c Cart) Subtotal() int64 {
	var subtotal int64
	for _, item := range c.Items {
		subtotal += item.EffectiveUnitPrice() * int64(item.Quantity)
	}

	return subtotal
}

type CheckoutForm struct {
	FullName string `json:"fullName" form:"fullName"`
	Email    string `json:"email" form:"email"`
	Mobile   string `json:"mobile" form:"mobile"`

	Address  string `json:"address" form:"address"`
	Area     string `json:"area" form:"area"`
	PinCode  string `json:"pinCode" form:"pinCode"`
	Landmark string `json:"landmark,omitempty" form:"landmark"`

	DeliveryDate string `json:"deliveryDate" form:"deliveryDate"`
	DeliveryType string `json:"deliveryType" form:"deliveryType"`
	TimeSlot     string `json:"timeSlot" form:"timeSlot"`

	Occasion            string `json:"occasion,omitempty" form:"occasion"`
	Relation            string `json:"relation,omitempty" form:"relation"`
	SenderName          string `json:"senderName,omitempty" form:"senderName"`
	CardMessage         string `json:"cardMessage,omitempty" form:"cardMessage"`
	SpecialInstructions string `json:"specialInstructions,omitempty" form:"specialInstructions"`

	// TrustedProfile marks a signed-in customer whose personal and address
	// fields come from a stored profile and skip strict validation.
	TrustedProfile bool `json:"trustedProfile,omitempty" form:"trustedProfile"`
}

// Validate returns per-field error messages for the fields a guest must fill in.
func (f CheckoutForm) Validate() map[string]string {
	problems := map[string]string{}

	if !f.TrustedProfile {
		if strings.TrimSpace(f.FullName) == "" {
			problems["fullName"] = "full name is required"
		}
		if strings.TrimSpace(f.Email) == "" || !strings.Contains(f.Email, "@") {
			problems["email"] = "a valid email is required"
		}
		if len(strings.TrimSpace(f.Mobile)) < 10 {
			problems["mobile"] = "a valid mobile number is required"
		}
		if strings.TrimSpace(f.Address) == "" {
			problems["address"] = "delivery address is required"
		}
		if strings.TrimSpace(f.Area) == "" {
			problems["area"] = "delivery area is required"
		}
		if len(strings.TrimSpace(f.PinCode)) != 6 {
			problems["pinCode"] = "a 6-digit pin code is required"
		}
	}

	if strings.TrimSpace(f.DeliveryDate) == "" {
		problems["deliveryDate"] = "delivery date is required"
	}
	if strings.TrimSpace(f.TimeSlot) == "" {
		problems["timeSlot"] = "time slot is required"
	}

	return problems
}
