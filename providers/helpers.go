package providers

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when a token response carries no id_token.
var ErrNoIDToken = errors.New("no id_token in token response")

// WithHTTPClient returns a context that makes golang.org/x/oauth2 use client
// for its requests. A nil client leaves ctx unchanged.
func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// RawIDToken extracts the raw id_token from an oauth2 token response.
func RawIDToken(token *oauth2.Token) (string, error) {
	if token == nil {
		return "", ErrNoIDToken
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", ErrNoIDToken
	}
	return raw, nil
}
