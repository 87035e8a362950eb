package domain

// OrderTotals captures the aggregated monetary results of assembling an order.
type OrderTotals struct {
	Currency    string
	ItemsTotal  int64
	DeliveryFee int64
	Total       int64
}

// DeliveryFeeFor returns the fee charged for the given method. Pickup orders
// never carry a delivery fee.
func DeliveryFeeFor(method DeliveryMethod, configured int64) int64 {
	if method == DeliveryMethodPickup {
		return 0
	}
	if configured < 0 {
		return 0
	}
	return configured
}

// ComputeOrderTotals sums the line snapshots and applies the delivery fee.
func ComputeOrderTotals(currency string, lines []OrderLine, method DeliveryMethod, deliveryFee int64) OrderTotals {
	totals := OrderTotals{Currency: currency}
	for _, line := range lines {
		totals.ItemsTotal += line.Subtotal
	}
	totals.DeliveryFee = DeliveryFeeFor(method, deliveryFee)
	totals.Total = totals.ItemsTotal + totals.DeliveryFee
	return totals
}

// SnapshotLine freezes a cart line against the catalog record at order time.
func SnapshotLine(flower Flower, quantity int) OrderLine {
	return OrderLine{
		FlowerID:   flower.ID,
		FlowerName: flower.Name,
		UnitPrice:  flower.Price,
		Quantity:   quantity,
		Subtotal:   flower.Price * int64(quantity),
	}
}

// TerminalStatus reports whether an order status admits no further transitions.
func TerminalStatus(status OrderStatus) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}
