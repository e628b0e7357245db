package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxIdentity ctxKey = iota

var ErrNoIdentity = errors.New("identity not in context")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxIdentity).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func UserID(ctx context.Context) (string, error) {
	id, err := FromContext(ctx)
	if err != nil {
		return "", errors.New("user_id not in context")
	}
	return id.UserID, nil
}

func Role(ctx context.Context) (string, error) {
	id, err := FromContext(ctx)
	if err != nil || id.Role == "" {
		return "", errors.New("role not in context")
	}
	return id.Role, nil
}
