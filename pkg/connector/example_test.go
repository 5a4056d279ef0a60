package connector_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/destinations/jsonl"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/registry"

	// Import connectors to register them
	_ "github.com/ajitpratap0/nebula-gocardless/pkg/connector/sources/gocardless"
)

// Example lists the registered connectors.
func Example() {
	fmt.Println("sources:", registry.ListSources())
	fmt.Println("destinations:", registry.ListDestinations())
	// Output:
	// sources: [gocardless]
	// destinations: [jsonl]
}

// Example_sink writes a state checkpoint as a JSON line.
func Example_sink() {
	dest := jsonl.NewWriterDestination(os.Stdout)
	err := dest.WriteState(context.Background(), "payments", core.State{"created_at": "2024-03-01T10:00:00.000Z"})
	if err != nil {
		log.Fatal(err)
	}
	// Output:
	// {"type":"STATE","stream":"payments","data":{"created_at":"2024-03-01T10:00:00.000Z"}}
}
