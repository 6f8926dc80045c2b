package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/pkg/contextx"
	"github.com/hookrelay/hookrelay/pkg/signature"
	"github.com/hookrelay/hookrelay/pkg/types"
	"github.com/hookrelay/hookrelay/worker/deliverer"
)

type SecretResponse struct {
	Secret string `json:"secret"`
}

func (api *API) PageWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var q query.WebhookConfigQuery
	q.Newest()
	api.bindQuery(r, &q.Query)
	if active := api.query(r, "active"); active != nil {
		v, _ := strconv.ParseBool(*active)
		q.Active = &v
	}
	list, total, err := api.db.WebhookConfigsOwner.Page(r.Context(), &q)
	api.assert(err)

	api.json(200, w, NewPagination(total, list))
}

func (api *API) GetWebhookConfig(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	config, err := api.db.WebhookConfigsOwner.Get(r.Context(), id)
	api.assert(err)

	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	api.json(200, w, config)
}

// validateURL checks the destination. Address checks only apply in
// production.
func (api *API) validateURL(r *http.Request, url string) error {
	acl := api.acl
	if !api.cfg.IsProduction() {
		acl = nil
	}
	return deliverer.ValidateURL(r.Context(), url, acl, api.resolver)
}

func (api *API) CreateWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var config entities.WebhookConfig
	config.Init()
	api.assert(defaults.Set(&config))
	if err := api.decode(r, &config); err != nil {
		api.error(400, w, err)
		return
	}

	if err := config.Validate(); err != nil {
		api.error(400, w, err)
		return
	}
	if err := api.validateURL(r, config.URL); err != nil {
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
	err := api.db.WebhookConfigs.Insert(r.Context(), &config)
	api.assert(err)

	api.json(201, w, config)
}

func (api *API) UpdateWebhookConfig(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	config, err := api.db.WebhookConfigsOwner.Get(r.Context(), id)
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
	if err := config.Validate(); err != nil {
		api.error(400, w, err)
		return
	}
	if config.URL != original.URL {
		if err := api.validateURL(r, config.URL); err != nil {
			api.error(400, w, err)
			return
		}
	}

	config.ID = id
	config.OwnerID = original.OwnerID
	// secrets change through rotate only
	config.Secret = original.Secret
	err = api.db.WebhookConfigs.Update(r.Context(), config)
	api.assert(err)

	api.json(200, w, config)
}

func (api *API) DeleteWebhookConfig(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	_, err := api.db.WebhookConfigsOwner.Delete(r.Context(), id)
	api.assert(err)

	w.WriteHeader(204)
}

func (api *API) RevealSecret(w http.ResponseWriter, r *http.Request) {
	config, err := api.db.WebhookConfigsOwner.Get(r.Context(), api.param(r, "id"))
	api.assert(err)
	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	api.json(200, w, SecretResponse{Secret: config.Secret.Reveal()})
}

// RotateSecret replaces the secret. Deliveries already in flight keep
// signing with the secret loaded for their attempt.
func (api *API) RotateSecret(w http.ResponseWriter, r *http.Request) {
	config, err := api.db.WebhookConfigsOwner.Get(r.Context(), api.param(r, "id"))
	api.assert(err)
	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	secret, err := signature.GenerateSecret()
	api.assert(err)
	config.Secret = entities.Secret(secret)
	api.assert(api.db.WebhookConfigs.Update(r.Context(), config))

	api.log.Infof("[admin] rotated secret of webhook config %s", config.ID)
	api.json(200, w, SecretResponse{Secret: secret})
}

func (api *API) TestWebhookConfig(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	config, err := api.db.WebhookConfigsOwner.Get(r.Context(), id)
	api.assert(err)
	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	delivery, err := api.dispatcher.TestConfig(r.Context(), id)
	if errors.Is(err, dispatcher.ErrConfigNotFound) {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}
	if err != nil && delivery == nil {
		panic(err)
	}

	api.json(202, w, delivery)
}

func (api *API) WebhookConfigStats(w http.ResponseWriter, r *http.Request) {
	id := api.param(r, "id")
	config, err := api.db.WebhookConfigsOwner.Get(r.Context(), id)
	api.assert(err)
	if config == nil {
		api.json(404, w, types.ErrorResponse{Message: MsgNotFound})
		return
	}

	days := 7
	if v := api.query(r, "days"); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil || n <= 0 {
			api.json(400, w, types.ErrorResponse{Message: "days must be a positive integer"})
			return
		}
		days = n
	}

	stats, err := api.logger.Stats(r.Context(), id, days)
	api.assert(err)

	api.json(200, w, stats)
}
