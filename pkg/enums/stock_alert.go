package enums

type AlertType string

const (
	AlertLowStock          AlertType = "low_stock"
	AlertOutOfStock        AlertType = "out_of_stock"
	AlertOverstock         AlertType = "overstock"
	AlertRestockSuggestion AlertType = "restock_suggestion"
)

var validAlertTypes = []AlertType{AlertLowStock, AlertOutOfStock, AlertOverstock, AlertRestockSuggestion}

func (a AlertType) IsValid() bool { return contains(validAlertTypes, a) }

func ParseAlertType(value string) (AlertType, error) {
	return parse(validAlertTypes, value, "alert type")
}

type AlertPriority string

const (
	AlertPriorityCritical AlertPriority = "critical"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityLow      AlertPriority = "low"
)

// AlertAction records how an alert was resolved.
type AlertAction string

const (
	AlertActionRestocked         AlertAction = "restocked"
	AlertActionDiscontinued      AlertAction = "discontinued"
	AlertActionThresholdAdjusted AlertAction = "threshold_adjusted"
	AlertActionFalseAlert        AlertAction = "false_alert"
	AlertActionWaitingSupplier   AlertAction = "waiting_supplier"
)

var validAlertActions = []AlertAction{
	AlertActionRestocked,
	AlertActionDiscontinued,
	AlertActionThresholdAdjusted,
	AlertActionFalseAlert,
	AlertActionWaitingSupplier,
}

func (a AlertAction) IsValid() bool { return contains(validAlertActions, a) }

func ParseAlertAction(value string) (AlertAction, error) {
	return parse(validAlertActions, value, "alert action")
}
