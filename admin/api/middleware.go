package api

import (
	"net/http"

	"github.com/hookrelay/hookrelay/pkg/contextx"
)

const HeaderOwnerID = "X-Owner-ID"

// ownerMiddleware scopes the request to an owner taken from the owner_id
// query parameter or the X-Owner-ID header. Without one every owner is
// visible.
func (api *API) ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner_id")
		if owner == "" {
			owner = r.Header.Get(HeaderOwnerID)
		}
		if owner != "" {
			r = r.WithContext(contextx.WithContext(r.Context(), &contextx.Context{OwnerID: owner}))
		}
		next.ServeHTTP(w, r)
	})
}
