package pkgrouter

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

// RoutePattern returns the registered pattern that matched the request
// (for example "/api/processcsvfile"), or "" outside a matched route.
func RoutePattern(ctx context.Context) string {
	return httprouter.ParamsFromContext(ctx).MatchedRoutePath()
}
