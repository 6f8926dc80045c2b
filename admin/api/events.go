package api

import (
	"context"
	"net/http"

	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/pkg/contextx"
	"github.com/hookrelay/hookrelay/pkg/types"
	"github.com/hookrelay/hookrelay/utils"
)

type TriggerRequest struct {
	EventType string                 `json:"event_type" validate:"required,eventtype"`
	Data      map[string]interface{} `json:"data"`
	OwnerID   string                 `json:"owner_id"`
}

type TriggerResponse struct {
	Deliveries []*entities.Delivery `json:"deliveries"`
	Errors     []string             `json:"errors,omitempty"`
}

// TriggerEvent hands an internal event to the dispatcher. Failures of
// single webhooks do not fail the request.
func (api *API) TriggerEvent(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := api.decode(r, &req); err != nil {
		api.error(400, w, err)
		return
	}
	if err := utils.Validate(&req); err != nil {
		api.error(400, w, err)
		return
	}
	if owner := contextx.GetOwnerID(r.Context()); owner != "" {
		req.OwnerID = owner
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}

	deliveries, err := api.dispatcher.Trigger(context.WithoutCancel(r.Context()), req.EventType, req.Data, req.OwnerID)
	res := TriggerResponse{Deliveries: deliveries}
	if res.Deliveries == nil {
		res.Deliveries = []*entities.Delivery{}
	}
	if err != nil {
		if len(deliveries) == 0 {
			api.log.Errorf("[admin] failed to trigger %s: %v", req.EventType, err)
			api.json(500, w, types.ErrorResponse{Message: "failed to trigger event"})
			return
		}
		res.Errors = []string{err.Error()}
	}

	api.json(202, w, res)
}
