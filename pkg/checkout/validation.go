package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
)

// AvailabilityInput describes the data required to verify a line against stock.
type AvailabilityInput struct {
	ProductID    uuid.UUID
	ProductTitle string
	Size         string
	Available    int
	Quantity     int
}

// AvailabilityViolation exposes the data returned to callers when a line cannot be served.
type AvailabilityViolation struct {
	ProductID    uuid.UUID `json:"product_id"`
	Size         string    `json:"size"`
	Message      string    `json:"message"`
	Available    int       `json:"available"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateAvailability ensures every line fits the available stock of its size entry.
func ValidateAvailability(items []AvailabilityInput) error {
	var violations []AvailabilityViolation
	for _, item := range items {
		if item.Quantity <= item.Available {
			continue
		}
		violations = append(violations, AvailabilityViolation{
			ProductID:    item.ProductID,
			Size:         item.Size,
			Message:      fmt.Sprintf("Insufficient stock for %s size %s", item.ProductTitle, item.Size),
			Available:    item.Available,
			RequestedQty: item.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	message := violations[0].Message
	if len(violations) > 1 {
		message = fmt.Sprintf("insufficient stock for %d item(s)", len(violations))
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, message).WithDetails(map[string]any{
		"violations": violations,
	})
}
