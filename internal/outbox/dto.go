package outbox

import "encoding/json"

type enqueueRequest struct {
	EventType string          `json:"event_type" validate:"required,min=1,max=120"`
	Payload   json.RawMessage `json:"payload"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

type processRequest struct {
	Limit int `json:"limit" validate:"omitempty,gte=1,lte=500"`
}
