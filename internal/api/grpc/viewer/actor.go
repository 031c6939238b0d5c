package viewer

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// ActorMetadataKey carries the operator identity of state-changing calls.
const ActorMetadataKey = "x-mova-actor"

// unknownActor is logged when a caller did not identify itself.
const unknownActor = "unknown"

// WithActor attaches actor to the outgoing metadata of ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, actor)
}

// actorFromContext returns the caller identity sent with the request.
func actorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return unknownActor
	}

	if values := md.Get(ActorMetadataKey); len(values) > 0 && values[0] != "" {
		return values[0]
	}

	return unknownActor
}
