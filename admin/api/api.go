package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/config"
	"github.com/hookrelay/hookrelay/db"
	dberrs "github.com/hookrelay/hookrelay/db/errs"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/deliverylog"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/pkg/errs"
	"github.com/hookrelay/hookrelay/pkg/http/middlewares"
	"github.com/hookrelay/hookrelay/pkg/http/response"
	"github.com/hookrelay/hookrelay/pkg/types"
	"github.com/hookrelay/hookrelay/worker/deliverer"
	"go.uber.org/zap"
)

const MsgNotFound = "not found"

type API struct {
	cfg        *config.Config
	db         *db.DB
	dispatcher *dispatcher.Dispatcher
	logger     *deliverylog.Logger
	acl        *deliverer.ACL
	resolver   deliverer.Resolver
	log        *zap.SugaredLogger
}

type Options struct {
	Config     *config.Config
	DB         *db.DB
	Dispatcher *dispatcher.Dispatcher
	Logger     *deliverylog.Logger
	// ACL is enforced on webhook urls in production. Nil skips the
	// address checks.
	ACL      *deliverer.ACL
	Resolver deliverer.Resolver
	Log      *zap.SugaredLogger
}

func NewAPI(opts Options) *API {
	return &API{
		cfg:        opts.Config,
		db:         opts.DB,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		acl:        opts.ACL,
		resolver:   opts.Resolver,
		log:        opts.Log,
	}
}

type Pagination[T any] struct {
	Total int64 `json:"total"`
	Data  []T   `json:"data"`
}

func NewPagination[T any](total int64, data []T) *Pagination[T] {
	return &Pagination[T]{
		Total: total,
		Data:  data,
	}
}

// param returns the value of an url variable
func (api *API) param(r *http.Request, variable string) string {
	return mux.Vars(r)[variable]
}

// query returns the url query value if it exists.
func (api *API) query(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

func (api *API) json(code int, w http.ResponseWriter, data interface{}) {
	response.JSON(w, code, data)
}

func (api *API) bindQuery(r *http.Request, q *query.Query) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page_no"))
	pagesize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	q.Page(page, pagesize)
}

func (api *API) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.NewHTTPError(http.StatusBadRequest, "invalid json", err)
	}
	return nil
}

func (api *API) error(code int, w http.ResponseWriter, err error) {
	var validateErr *errs.ValidateError
	if errors.As(err, &validateErr) {
		api.json(code, w, types.ErrorResponse{
			Message: "Request Validation",
			Error:   validateErr,
		})
		return
	}
	api.json(code, w, types.ErrorResponse{Message: err.Error()})
}

func (api *API) assert(err error) {
	if err != nil {
		panic(err)
	}
}

// customizeError answers errors raised through assert that are the
// client's fault.
func (api *API) customizeError(err error, w http.ResponseWriter) bool {
	var dbErr *dberrs.DBError
	if errors.As(err, &dbErr) {
		api.error(http.StatusBadRequest, w, dbErr)
		return true
	}
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		api.error(httpErr.Code, w, httpErr)
		return true
	}
	return false
}

type IndexResponse struct {
	Version string `json:"version"`
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

func (api *API) Index(w http.ResponseWriter, r *http.Request) {
	var res IndexResponse
	res.Version = hookrelay.VERSION
	res.Message = "Welcome to HookRelay"
	res.Mode = "postgres"
	if api.db.IsMemory() {
		res.Mode = "memory"
	}
	api.json(200, w, res)
}

// Handler returns a http.Handler
func (api *API) Handler() http.Handler {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, 404, types.ErrorResponse{Message: MsgNotFound})
	})

	r.Use(middlewares.NewRecovery(api.customizeError).Handle)
	r.Use(api.ownerMiddleware)

	r.HandleFunc("/", api.Index).Methods("GET")

	r.HandleFunc("/webhooks", api.PageWebhookConfig).Methods("GET")
	r.HandleFunc("/webhooks", api.CreateWebhookConfig).Methods("POST")
	r.HandleFunc("/webhooks/{id}", api.GetWebhookConfig).Methods("GET")
	r.HandleFunc("/webhooks/{id}", api.UpdateWebhookConfig).Methods("PUT")
	r.HandleFunc("/webhooks/{id}", api.DeleteWebhookConfig).Methods("DELETE")
	r.HandleFunc("/webhooks/{id}/secret/reveal", api.RevealSecret).Methods("POST")
	r.HandleFunc("/webhooks/{id}/secret/rotate", api.RotateSecret).Methods("POST")
	r.HandleFunc("/webhooks/{id}/test", api.TestWebhookConfig).Methods("POST")
	r.HandleFunc("/webhooks/{id}/stats", api.WebhookConfigStats).Methods("GET")

	r.HandleFunc("/incoming-webhooks", api.PageIncomingWebhookConfig).Methods("GET")
	r.HandleFunc("/incoming-webhooks", api.CreateIncomingWebhookConfig).Methods("POST")
	r.HandleFunc("/incoming-webhooks/{id}", api.GetIncomingWebhookConfig).Methods("GET")
	r.HandleFunc("/incoming-webhooks/{id}", api.UpdateIncomingWebhookConfig).Methods("PUT")
	r.HandleFunc("/incoming-webhooks/{id}", api.DeleteIncomingWebhookConfig).Methods("DELETE")

	r.HandleFunc("/deliveries", api.PageDelivery).Methods("GET")
	r.HandleFunc("/deliveries/{id}", api.GetDelivery).Methods("GET")
	r.HandleFunc("/deliveries/{id}/retry", api.RetryDelivery).Methods("POST")

	r.HandleFunc("/logs", api.PageDeliveryLog).Methods("GET")

	r.HandleFunc("/events", api.TriggerEvent).Methods("POST")

	return r
}
