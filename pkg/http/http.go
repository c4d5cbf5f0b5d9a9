// Package http serves the federation gateway over HTTP.
package http

import (
	"net/http"

	log "github.com/jensneuse/abstractlogger"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/resolve"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphql"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphqlerrors"
)

const (
	httpHeaderContentType string = "Content-Type"
	httpHeaderRequestID   string = "X-Request-Id"

	httpContentTypeApplicationJson string = "application/json"
)

func (g *GatewayHandler) handleHTTP(w http.ResponseWriter, r *http.Request) {
	var request graphql.Request
	if err := graphql.UnmarshalHttpRequest(r, &request); err != nil {
		g.log.Error("GatewayHandler.handleHTTP: unmarshal request",
			log.Error(err),
		)
		g.writeErrors(w, http.StatusBadRequest, graphqlerrors.ErrorsFromError(err, graphqlerrors.CodeBadRequest))
		return
	}

	operation, err := request.Operation(g.types)
	if err != nil {
		g.log.Error("GatewayHandler.handleHTTP: operation",
			log.String("operationName", request.OperationName),
			log.Error(err),
		)
		g.writeErrors(w, http.StatusBadRequest, graphqlerrors.ErrorsFromError(err, graphqlerrors.CodeBadRequest))
		return
	}

	queryPlan, err := g.planner.Plan(operation.Type, operation.Selections)
	if err != nil {
		g.log.Error("GatewayHandler.handleHTTP: plan",
			log.String("operationName", request.OperationName),
			log.Error(err),
		)
		g.writeErrors(w, http.StatusBadRequest, graphqlerrors.ErrorsFromError(err, graphqlerrors.CodePlanningError))
		return
	}

	execCtx := resolve.NewExecutionContext()
	response, err := g.executor.Execute(r.Context(), queryPlan, execCtx)
	if err != nil {
		if r.Context().Err() != nil {
			g.log.Debug("GatewayHandler.handleHTTP: request cancelled",
				log.String("requestID", execCtx.RequestID),
			)
			return
		}
		g.log.Error("GatewayHandler.handleHTTP: execute",
			log.String("requestID", execCtx.RequestID),
			log.Error(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set(httpHeaderContentType, httpContentTypeApplicationJson)
	w.Header().Set(httpHeaderRequestID, execCtx.RequestID)
	w.WriteHeader(http.StatusOK)
	if _, err := response.WriteTo(w); err != nil {
		g.log.Error("GatewayHandler.handleHTTP: write response",
			log.String("requestID", execCtx.RequestID),
			log.Error(err),
		)
	}
}

func (g *GatewayHandler) writeErrors(w http.ResponseWriter, status int, errs graphqlerrors.Errors) {
	w.Header().Set(httpHeaderContentType, httpContentTypeApplicationJson)
	w.WriteHeader(status)
	if _, err := errs.WriteResponse(w); err != nil {
		g.log.Error("GatewayHandler.writeErrors",
			log.Error(err),
		)
	}
}
