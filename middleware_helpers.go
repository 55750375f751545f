package jobtracker

import (
	"context"

	"github.com/goliatone/go-jobtracker/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use tracker helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores the acting user id and the claims in the
// standard context so services downstream of the middleware can read them.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	if claims == nil {
		return c
	}

	ctx := WithUserID(c, claims.UserID())

	if authClaims, ok := claims.(AuthClaims); ok {
		ctx = WithClaimsContext(ctx, authClaims)
	}

	return ctx
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	for _, l := range listeners {
		if l != nil {
			cfg.ValidationListeners = append(cfg.ValidationListeners, l)
		}
	}
}
