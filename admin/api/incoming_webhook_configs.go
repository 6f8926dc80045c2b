package api

import (
	"net/http"

	"github.com/creasty/defaults"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/pkg/contextx"
	"github.com/hookrelay/hookrelay/pkg/errs"
	"github.com/hookrelay/hookrelay/pkg/schema"
	"github.com/hookrelay/hookrelay/pkg/signature"
	"github.com/hookrelay/hookrelay/pkg/types"
)

func (api *API) PageIncomingWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var q query.IncomingWebhookConfigQuery
	q.Newest()
	api.bindQuery(r, &q.Query)
	list, total, err := api.db.IncomingWebhookConfigsOwner.Page(r.Context(), &q)
	api.assert(err)

	api.json(200, w, NewPagination(total, list))
}

func (api *API) GetIncomingWebhookConfig(w http.ResponseWriter, r *http.Request) {
	config, err := api.db.IncomingWebhookConfigsOwner.Get(r.Context(), api.param(r, "id"))
	api.assert(err)

	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	api.json(200, w, config)
}

// validateIncoming runs the struct rules and compiles the schema.
func validateIncoming(config *entities.IncomingWebhookConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Schema != nil && *config.Schema != "" {
		if _, err := schema.New(*config.Schema); err != nil {
			return errs.NewHTTPError(http.StatusBadRequest, "invalid schema", err)
		}
	}
	return nil
}

func (api *API) CreateIncomingWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var config entities.IncomingWebhookConfig
	config.Init()
	api.assert(defaults.Set(&config))
	if err := api.decode(r, &config); err != nil {
		api.error(400, w, err)
		return
	}

	if err := validateIncoming(&config); err != nil {
		api.error(400, w, err)
		return
	}

	if config.Secret == "" {
		secret, err := signature.GenerateSecret()
		api.assert(err)
		config.Secret = entities.Secret(secret)
	}
	if owner := contextx.GetOwnerID(r.Context()); owner != "" {
		config.OwnerID = owner
	}
	err := api.db.IncomingWebhookConfigs.Insert(r.Context(), &config)
	api.assert(err)

	// the secret is shown once, senders need it to sign
	api.json(201, w, struct {
		*entities.IncomingWebhookConfig
		Secret string `json:"secret"`
	}{&config, config.Secret.Reveal()})
}

func (api *API) UpdateIncomingWebhookConfig(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	config, err := api.db.IncomingWebhookConfigsOwner.Get(r.Context(), id)
	api.assert(err)
	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	original := *config
	if err := api.decode(r, config); err != nil {
		api.error(400, w, err)
		return
	}
	if err := validateIncoming(config); err != nil {
		api.error(400, w, err)
		return
	}

	config.ID = id
	config.OwnerID = original.OwnerID
	if config.Secret == "" || config.Secret.Masked() {
		config.Secret = original.Secret
	}
	err = api.db.IncomingWebhookConfigs.Update(r.Context(), config)
	api.assert(err)

	api.json(200, w, config)
}

func (api *API) DeleteIncomingWebhookConfig(w http.ResponseWriter, r *http.Request) {
	_, err := api.db.IncomingWebhookConfigsOwner.Delete(r.Context(), api.param(r, "id"))
	api.assert(err)

	w.WriteHeader(204)
}
