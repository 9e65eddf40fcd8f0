package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateProductSize OutboxAggregateType = "product_size"
	AggregateStockAlert  OutboxAggregateType = "stock_alert"
	AggregateOrder       OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{AggregateProductSize, AggregateStockAlert, AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return contains(validAggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventStockAlertRaised   OutboxEventType = "stock.alert_raised"
	EventStockAlertResolved OutboxEventType = "stock.alert_resolved"
	EventOrderConfirmed     OutboxEventType = "order.confirmed"
	EventOrderCancelled     OutboxEventType = "order.cancelled"
)

var validEventTypes = []OutboxEventType{
	EventStockAlertRaised,
	EventStockAlertResolved,
	EventOrderConfirmed,
	EventOrderCancelled,
}

func (e OutboxEventType) IsValid() bool { return contains(validEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validEventTypes, value, "event type")
}
