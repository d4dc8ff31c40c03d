package ordermanagement

// DeliveryPricer computes the delivery charge for an area given the cart subtotal.
type DeliveryPricer interface {
	Charge(area string, subtotal int64) int64
}

const (
	// orders at or above this subtotal ship free
	freeDeliveryThreshold = 1000
	defaultDeliveryCharge = 60
)

type areaTablePricer struct {
	perArea map[string]int64
}

func NewDeliveryPricer() DeliveryPricer {
	return &areaTablePricer{
		perArea: map[string]int64{
			// outskirts carry a surcharge
			"Whitefield":      90,
			"Electronic City": 90,
			"Yelahanka":       80,
		},
	}
}

func (p *areaTablePricer) Charge(area string, subtotal int64) int64 {
	if subtotal >= freeDeliveryThreshold {
		return 0
	}

	if charge, found := p.perArea[area]; found {
		return charge
	}

	return defaultDeliveryCharge
}
