package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
)

// ExampleNewBaseConfig shows the defaults every connector starts from.
func ExampleNewBaseConfig() {
	cfg := config.NewBaseConfig("gocardless", "gocardless")

	fmt.Printf("Request Timeout: %s\n", cfg.Timeouts.Request)
	fmt.Printf("Retry Attempts: %d\n", cfg.Reliability.RetryAttempts)
	fmt.Printf("Circuit Breaker: %v\n", cfg.Reliability.CircuitBreaker)

	// Output:
	// Request Timeout: 30s
	// Retry Attempts: 3
	// Circuit Breaker: true
}

// ExampleBaseConfig_Validate shows how to validate a configuration
// before using it.
func ExampleBaseConfig_Validate() {
	cfg := config.NewBaseConfig("gocardless", "gocardless")
	cfg.Reliability.RateLimitPerSec = 5
	cfg.Security.Credentials["access_token"] = "sandbox_token"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("rate limited:", cfg.Reliability.IsRateLimited())
	fmt.Println("environment:", cfg.Credential("gocardless_environment", "live"))

	// Output:
	// rate limited: true
	// environment: live
}
