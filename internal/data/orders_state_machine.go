package data

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	PendingOrderStatus    OrderStatus = "pending"
	PaidOrderStatus       OrderStatus = "paid"
	ConfirmedOrderStatus  OrderStatus = "confirmed"
	ProcessingOrderStatus OrderStatus = "processing"
	ShippedOrderStatus    OrderStatus = "shipped"
	InTransitOrderStatus  OrderStatus = "in_transit"
	DeliveredOrderStatus  OrderStatus = "delivered"
	CompletedOrderStatus  OrderStatus = "completed"
	DisputedOrderStatus   OrderStatus = "disputed"
	CancelledOrderStatus  OrderStatus = "cancelled"
	RefundedOrderStatus   OrderStatus = "refunded"
)

type DeliveryType string

const (
	LocalPickupDeliveryType        DeliveryType = "local_pickup"
	CrossStateDeliveryDeliveryType DeliveryType = "cross_state_delivery"
	DigitalDeliveryType            DeliveryType = "digital"
)

// Validate validates the order status.
func (status OrderStatus) Validate() error {
	switch OrderStatus(strings.ToLower(string(status))) {
	case PendingOrderStatus, PaidOrderStatus, ConfirmedOrderStatus, ProcessingOrderStatus,
		ShippedOrderStatus, InTransitOrderStatus, DeliveredOrderStatus, CompletedOrderStatus,
		DisputedOrderStatus, CancelledOrderStatus, RefundedOrderStatus:
		return nil
	default:
		return fmt.Errorf("invalid order status: %s", status)
	}
}

// Validate validates the delivery type.
func (dt DeliveryType) Validate() error {
	switch DeliveryType(strings.ToLower(string(dt))) {
	case LocalPickupDeliveryType, CrossStateDeliveryDeliveryType, DigitalDeliveryType:
		return nil
	default:
		return fmt.Errorf("invalid delivery type: %s", dt)
	}
}

// TransitionTo transitions the order status to the target state.
func (status OrderStatus) TransitionTo(targetState OrderStatus) error {
	return OrderStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// OrderStateMachineWithInitialState returns a state machine for service orders
// initialized with the given state.
func OrderStateMachineWithInitialState(initialState OrderStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingOrderStatus.State(), To: PaidOrderStatus.State()},        // buyer pays, funds move
		{From: PendingOrderStatus.State(), To: CancelledOrderStatus.State()},   // cancelled before payment
		{From: PaidOrderStatus.State(), To: ConfirmedOrderStatus.State()},      // vendor acknowledges
		{From: PaidOrderStatus.State(), To: ProcessingOrderStatus.State()},     // vendor starts work
		{From: PaidOrderStatus.State(), To: ShippedOrderStatus.State()},        // vendor ships directly
		{From: PaidOrderStatus.State(), To: CompletedOrderStatus.State()},      // local pickup completes on payment
		{From: PaidOrderStatus.State(), To: DeliveredOrderStatus.State()},      // digital goods deliver on payment
		{From: PaidOrderStatus.State(), To: DisputedOrderStatus.State()},       // buyer disputes after payment
		{From: ConfirmedOrderStatus.State(), To: ProcessingOrderStatus.State()},
		{From: ProcessingOrderStatus.State(), To: ShippedOrderStatus.State()},
		{From: ShippedOrderStatus.State(), To: InTransitOrderStatus.State()},
		{From: ShippedOrderStatus.State(), To: DeliveredOrderStatus.State()},
		{From: InTransitOrderStatus.State(), To: DeliveredOrderStatus.State()},
		{From: DeliveredOrderStatus.State(), To: CompletedOrderStatus.State()}, // delivery confirmed, hold released
		{From: DeliveredOrderStatus.State(), To: DisputedOrderStatus.State()},
		{From: DisputedOrderStatus.State(), To: CompletedOrderStatus.State()},  // dispute dismissed or split
		{From: DisputedOrderStatus.State(), To: RefundedOrderStatus.State()},   // dispute resolved for buyer
	}

	return NewStateMachine(initialState.State(), transitions)
}

// OrderStatuses returns a list of all possible order statuses.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		PendingOrderStatus, PaidOrderStatus, ConfirmedOrderStatus, ProcessingOrderStatus,
		ShippedOrderStatus, InTransitOrderStatus, DeliveredOrderStatus, CompletedOrderStatus,
		DisputedOrderStatus, CancelledOrderStatus, RefundedOrderStatus,
	}
}

// SourceStatuses returns the states an order can transition from, given the target state.
func (status OrderStatus) SourceStatuses() []OrderStatus {
	stateMachine := OrderStateMachineWithInitialState(PendingOrderStatus)
	fromStates := []OrderStatus{}
	for _, fromState := range OrderStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

func (status OrderStatus) State() State {
	return State(status)
}

// IsTerminal reports whether no further transitions are possible.
func (status OrderStatus) IsTerminal() bool {
	return status == CompletedOrderStatus || status == CancelledOrderStatus || status == RefundedOrderStatus
}
