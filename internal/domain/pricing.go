package domain

const (
	// FreeShippingThreshold is the subtotal, in bani, above which shipping is
	// free. Orders at or below the threshold pay the standard fee.
	FreeShippingThreshold int64 = 10000

	// StandardShippingFee is the flat courier fee, in bani.
	StandardShippingFee int64 = 2000
)

// ShippingCost computes the courier fee for a given cart subtotal. The same
// function runs on the checkout estimate and at order creation so the two can
// never disagree.
func ShippingCost(subtotal int64) int64 {
	if subtotal <= FreeShippingThreshold {
		return StandardShippingFee
	}
	return 0
}

// OrderTotal computes the grand total owed at delivery.
func OrderTotal(subtotal int64) int64 {
	return subtotal + ShippingCost(subtotal)
}
