package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
)

// remote wraps the instrumented client so every call comes back either as a
// readable body or as a domain error.
type remote struct {
	client  *clients.Client
	service string
}

func newRemote(client *clients.Client) remote {
	return remote{client: client, service: client.ServiceName()}
}

// get returns the body of a successful GET. The caller closes it.
func (r remote) get(ctx context.Context, path, operation string) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, path)

	return r.body(resp, err, operation)
}

func (r remote) post(ctx context.Context, path string, payload io.Reader, operation string) (io.ReadCloser, error) {
	resp, err := r.client.Post(ctx, path, payload)

	return r.body(resp, err, operation)
}

func (r remote) body(resp *http.Response, err error, operation string) (io.ReadCloser, error) {
	if err != nil {
		return nil, toDomainError(nil, err, r.service, operation)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()

		return nil, toDomainError(resp, nil, r.service, operation)
	}

	return resp.Body, nil
}

// decode reads a JSON body into T and closes it.
func decode[T any](body io.ReadCloser) (T, error) {
	var v T

	if body == nil {
		return v, errors.New("response body is nil")
	}
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(&v); err != nil {
		return v, fmt.Errorf("decoding response: %w", err)
	}

	return v, nil
}

// translateAll converts every wire value and stops at the first invalid one.
func translateAll[W, D any](items []W, translate func(*W) (D, error)) ([]D, error) {
	out := make([]D, 0, len(items))

	for i := range items {
		d, err := translate(&items[i])
		if err != nil {
			return nil, fmt.Errorf("translating item %d: %w", i, err)
		}

		out = append(out, d)
	}

	return out, nil
}
