package main

import "github.com/TykTechnologies/graphql-federation-gateway/cmd"

func main() {
	cmd.Execute()
}
