package http

import (
	"context"
	"net/http"

	log "github.com/jensneuse/abstractlogger"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/resolve"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphql"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/selection"
)

// QueryPlanner is implemented by *plan.Planner and *plan.Cache.
type QueryPlanner interface {
	Plan(operationType plan.OperationType, root []*selection.FieldSelection) (*plan.QueryPlan, error)
}

// Executor is implemented by *resolve.Executor.
type Executor interface {
	Execute(ctx context.Context, queryPlan *plan.QueryPlan, execCtx *resolve.ExecutionContext) (*resolve.Response, error)
}

var (
	_ QueryPlanner = (*plan.Planner)(nil)
	_ QueryPlanner = (*plan.Cache)(nil)
	_ Executor     = (*resolve.Executor)(nil)
)

func NewGatewayHandler(types graphql.TypeResolver, planner QueryPlanner, executor Executor, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.NoopLogger
	}
	return &GatewayHandler{
		log:      logger,
		types:    types,
		planner:  planner,
		executor: executor,
	}
}

// GatewayHandler serves GraphQL over HTTP by planning each operation and executing the plan
// against the federated services.
type GatewayHandler struct {
	log      log.Logger
	types    graphql.TypeResolver
	planner  QueryPlanner
	executor Executor
}

func (g *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost:
		g.handleHTTP(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
