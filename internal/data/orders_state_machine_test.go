package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_OrderStatus_TransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   OrderStatus
		to     OrderStatus
		wantOK bool
	}{
		{name: "pending to paid", from: PendingOrderStatus, to: PaidOrderStatus, wantOK: true},
		{name: "pending to cancelled", from: PendingOrderStatus, to: CancelledOrderStatus, wantOK: true},
		{name: "paid to completed for local pickup", from: PaidOrderStatus, to: CompletedOrderStatus, wantOK: true},
		{name: "paid to delivered for digital goods", from: PaidOrderStatus, to: DeliveredOrderStatus, wantOK: true},
		{name: "paid to confirmed", from: PaidOrderStatus, to: ConfirmedOrderStatus, wantOK: true},
		{name: "paid to disputed", from: PaidOrderStatus, to: DisputedOrderStatus, wantOK: true},
		{name: "shipped to in_transit", from: ShippedOrderStatus, to: InTransitOrderStatus, wantOK: true},
		{name: "in_transit to delivered", from: InTransitOrderStatus, to: DeliveredOrderStatus, wantOK: true},
		{name: "delivered to completed", from: DeliveredOrderStatus, to: CompletedOrderStatus, wantOK: true},
		{name: "delivered to disputed", from: DeliveredOrderStatus, to: DisputedOrderStatus, wantOK: true},
		{name: "disputed to refunded", from: DisputedOrderStatus, to: RefundedOrderStatus, wantOK: true},
		{name: "disputed to completed", from: DisputedOrderStatus, to: CompletedOrderStatus, wantOK: true},
		{name: "pending to delivered is blocked", from: PendingOrderStatus, to: DeliveredOrderStatus, wantOK: false},
		{name: "paid to cancelled is blocked", from: PaidOrderStatus, to: CancelledOrderStatus, wantOK: false},
		{name: "delivered to refunded is blocked", from: DeliveredOrderStatus, to: RefundedOrderStatus, wantOK: false},
		{name: "completed is terminal", from: CompletedOrderStatus, to: DisputedOrderStatus, wantOK: false},
		{name: "refunded is terminal", from: RefundedOrderStatus, to: PaidOrderStatus, wantOK: false},
		{name: "cancelled is terminal", from: CancelledOrderStatus, to: PendingOrderStatus, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.from.TransitionTo(tc.to)
			if tc.wantOK {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func Test_OrderStatus_SourceStatuses(t *testing.T) {
	assert.ElementsMatch(t, []OrderStatus{}, PendingOrderStatus.SourceStatuses())
	assert.ElementsMatch(t, []OrderStatus{PendingOrderStatus}, PaidOrderStatus.SourceStatuses())
	assert.ElementsMatch(t,
		[]OrderStatus{PaidOrderStatus, ShippedOrderStatus, InTransitOrderStatus},
		DeliveredOrderStatus.SourceStatuses())
	assert.ElementsMatch(t,
		[]OrderStatus{PaidOrderStatus, DeliveredOrderStatus, DisputedOrderStatus},
		CompletedOrderStatus.SourceStatuses())
	assert.ElementsMatch(t, []OrderStatus{DisputedOrderStatus}, RefundedOrderStatus.SourceStatuses())
}

func Test_DeliveryType_Validate(t *testing.T) {
	require.NoError(t, LocalPickupDeliveryType.Validate())
	require.NoError(t, CrossStateDeliveryDeliveryType.Validate())
	require.NoError(t, DigitalDeliveryType.Validate())
	require.EqualError(t, DeliveryType("drone").Validate(), "invalid delivery type: drone")
}

func Test_OrderStatus_IsTerminal(t *testing.T) {
	for _, status := range OrderStatuses() {
		terminal := status == CompletedOrderStatus || status == CancelledOrderStatus || status == RefundedOrderStatus
		assert.Equal(t, terminal, status.IsTerminal(), "status %s", status)
	}
}
