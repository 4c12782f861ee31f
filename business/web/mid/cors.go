package mid

import (
	"context"
	"net/http"
	"strings"

	"github.com/zephyr/powgate/foundation/web"
)

// Cors sets the response headers needed for Cross-Origin Resource Sharing.
// The exposed headers let a browser based client read the structured access
// status returned with the protected page.
func Cors(origin string, exposed ...string) web.Middleware {
	expose := strings.Join(exposed, ", ")

	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding, Cookie")
			if expose != "" {
				w.Header().Set("Access-Control-Expose-Headers", expose)
			}

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
