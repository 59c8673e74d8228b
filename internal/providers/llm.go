package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
)

// Request carries an already-assembled chat turn. Providers forward it
// verbatim; they never alter the instructions or history.
type Request struct {
	Model        string
	Instructions string
	History      []domain.Turn
	UserContent  string
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Registry struct {
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

func (r *Registry) Register(provider string, client Client) {
	r.clients[strings.ToLower(provider)] = client
}

func (r *Registry) Client(provider string) (Client, bool) {
	client, ok := r.clients[strings.ToLower(provider)]
	return client, ok
}

// EchoClient answers with a summary of its own input. Used in tests and as
// an offline fallback.
type EchoClient struct{}

func (EchoClient) Complete(ctx context.Context, req Request) (string, error) {
	return fmt.Sprintf(
		"[model=%s turns=%d] %s",
		req.Model,
		len(req.History),
		collapse(req.UserContent),
	), nil
}

func collapse(text string) string {
	if len(text) > 120 {
		return text[:120] + "..."
	}
	return text
}
