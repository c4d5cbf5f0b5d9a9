package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/federation"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/graphql"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

var (
	planQuery         string
	planOperationName string
	planVariables     string
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:     "plan",
	Short:   "prints the query plan of an operation",
	Example: `gateway plan --supergraph supergraph.graphql --query '{ locations { name reviews { comment } } }'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadGatewayConfig(viper.GetViper())
		if err != nil {
			return err
		}
		request := graphql.Request{
			OperationName: planOperationName,
			Query:         planQuery,
		}
		if planVariables != "" {
			request.Variables = []byte(planVariables)
		}
		return printPlan(cmd.OutOrStdout(), config.Supergraph, request)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planQuery, "query", "q", "", "the GraphQL operation to plan (required)")
	_ = planCmd.MarkFlagRequired("query")
	planCmd.Flags().StringVar(&planOperationName, "operationName", "", "name of the operation to plan when the document has several")
	planCmd.Flags().StringVar(&planVariables, "variables", "", "JSON object with the operation variables")
}

func printPlan(out io.Writer, supergraphPath string, request graphql.Request) error {
	registryConfig, err := federation.LoadConfigFile(supergraphPath)
	if err != nil {
		return err
	}
	reg := registry.New(registryConfig)

	operation, err := request.Operation(reg)
	if err != nil {
		return err
	}
	queryPlan, err := plan.PlanOperation(operation.Type, operation.Selections, reg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, queryPlan.String())
	return err
}
