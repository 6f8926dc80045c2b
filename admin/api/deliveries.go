package api

import (
	"errors"
	"net/http"

	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/pkg/types"
)

func (api *API) PageDelivery(w http.ResponseWriter, r *http.Request) {
	var q query.DeliveryQuery
	q.Newest()
	api.bindQuery(r, &q.Query)
	q.ConfigID = api.query(r, "config_id")
	q.Status = api.query(r, "status")

	list, total, err := api.db.DeliveriesOwner.Page(r.Context(), &q)
	api.assert(err)

	api.json(200, w, NewPagination(total, list))
}

func (api *API) GetDelivery(w http.ResponseWriter, r *http.Request) {
	delivery, err := api.db.DeliveriesOwner.Get(r.Context(), api.param(r, "id"))
	api.assert(err)

	if delivery == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	api.json(200, w, delivery)
}

// RetryDelivery delivers the payload of a delivered or failed delivery
// again as a new delivery.
func (api *API) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	delivery, err := api.db.DeliveriesOwner.Get(r.Context(), id)
	api.assert(err)
	if delivery == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	retried, err := api.dispatcher.Retry(r.Context(), id)
	if errors.Is(err, dispatcher.ErrDeliveryInFlight) {
		api.json(409, w, types.ErrorResponse{Message: "delivery is " + string(delivery.Status)})
		return
	}
	if errors.Is(err, dispatcher.ErrConfigNotFound) {
		api.json(400, w, types.ErrorResponse{Message: "webhook config not found"})
		return
	}
	if err != nil && retried == nil {
		panic(err)
	}

	api.json(202, w, retried)
}

func (api *API) PageDeliveryLog(w http.ResponseWriter, r *http.Request) {
	var q query.DeliveryLogQuery
	q.Newest()
	api.bindQuery(r, &q.Query)
	q.ConfigID = api.query(r, "config_id")
	q.DeliveryID = api.query(r, "delivery_id")
	q.Direction = api.query(r, "direction")

	list, total, err := api.db.DeliveryLogs.Page(r.Context(), &q)
	api.assert(err)

	api.json(200, w, NewPagination(total, list))
}
