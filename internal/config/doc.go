// Package config provides configuration management for the aerodoc
// orchestrator.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values except the LLM API key and the retrieval source
// have defaults suitable for development.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
