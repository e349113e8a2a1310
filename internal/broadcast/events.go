package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/edvart/inhouse-queue/internal/errs"
)

const TypeActionRejected = "action.rejected"

// ActionRejected tells a single connection why its command was refused.
type ActionRejected struct {
	Code     errs.Code `json:"code"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
}

func (ActionRejected) EventType() string { return TypeActionRejected }

// NewActionRejected converts err into a client-facing rejection.
func NewActionRejected(err error) ActionRejected {
	code := errs.CodeOf(err)
	return ActionRejected{
		Code:     code,
		Category: errs.CategoryOf(code).String(),
		Message:  errs.MessageOf(err),
	}
}

// Encode renders a message as a JSON wire frame.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return data, nil
}
