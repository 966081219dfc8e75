package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ncobase/runpod/ecode"
	"github.com/ncobase/runpod/runpod/job"
)

// DefaultGraphQLEndpoint is the public catalog API.
const DefaultGraphQLEndpoint = "https://api.runpod.io/graphql"

const publicEndpointsQuery = `query GetPublicEndpoints { allAiApiPublicConfigs { aiApiId } }`

// ErrDiscovery matches every DiscoveryError.
var ErrDiscovery = errors.New("model discovery failed")

var errEmptyCatalog = errors.New("discovery returned no models")

// DiscoveryError reports a failed catalog refresh.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string { return "model discovery failed: " + e.Err.Error() }

func (e *DiscoveryError) Unwrap() error { return e.Err }

func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

func (e *DiscoveryError) Code() int { return ecode.DiscoveryErr }

// Discoverer fetches the provider's current list of model ids.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func(ctx context.Context) ([]string, error)

func (f DiscovererFunc) Discover(ctx context.Context) ([]string, error) { return f(ctx) }

// KeySource yields the API key at request time, so a rotated key reaches
// the next discovery.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// GraphQLDiscoverer lists public endpoints through the GraphQL API.
type GraphQLDiscoverer struct {
	Requester job.Requester
	Endpoint  string
	// Keys is asked before every query; an empty key queries anonymously
	Keys KeySource
}

// NewGraphQLDiscoverer creates a discoverer against the public endpoint.
// keys may be nil.
func NewGraphQLDiscoverer(r job.Requester, keys KeySource) *GraphQLDiscoverer {
	return &GraphQLDiscoverer{Requester: r, Endpoint: DefaultGraphQLEndpoint, Keys: keys}
}

type graphQLReply struct {
	Data *struct {
		AllAiApiPublicConfigs []struct {
			AiAPIID string `json:"aiApiId"`
		} `json:"allAiApiPublicConfigs"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Discover runs the query and returns ids in reply order without duplicates.
// Transport failures, GraphQL errors and empty replies are all errors.
func (d *GraphQLDiscoverer) Discover(ctx context.Context) ([]string, error) {
	body, err := json.Marshal(map[string]string{"query": publicEndpointsQuery})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if d.Keys != nil {
		key, err := d.Keys.APIKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve api key: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			headers["Authorization"] = "Bearer " + key
		}
	}
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = DefaultGraphQLEndpoint
	}

	raw, err := d.Requester.Do(ctx, &job.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: headers,
		Body:    body,
		JSON:    true,
	})
	if err != nil {
		return nil, &job.TransportError{Err: err}
	}

	var reply graphQLReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("malformed discovery reply: %w", err)
	}
	if len(reply.Errors) > 0 {
		msgs := make([]string, 0, len(reply.Errors))
		for _, e := range reply.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}
	if reply.Data == nil {
		return nil, errors.New("discovery reply has no data")
	}

	seen := make(map[string]struct{}, len(reply.Data.AllAiApiPublicConfigs))
	ids := make([]string, 0, len(reply.Data.AllAiApiPublicConfigs))
	for _, c := range reply.Data.AllAiApiPublicConfigs {
		id := strings.TrimSpace(c.AiAPIID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errEmptyCatalog
	}
	return ids, nil
}
