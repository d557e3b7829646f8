package testutil

import (
	"context"
	"net/http"
	"time"

	id "reliefops/pkg/domain"
	"reliefops/pkg/requestcontext"
)

// WithActor sets the acting user the auth middleware would normally store.
func WithActor(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// ActorContext builds a service-level context with an acting user and a
// fixed request time.
func ActorContext(userID id.UserID, now time.Time) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithTime(ctx, now)
}
