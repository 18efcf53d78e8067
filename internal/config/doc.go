// Package config loads urlstate configuration.
//
// The configuration lives next to the binary's working directory in one of
// urlstate.json, urlstate.yaml (or .yml), or urlstate.toml, searched in
// that order. A missing file is not an error: Load returns the defaults.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "metrics": true,
//	    "allowedOrigins": ["http://localhost:8080"]
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "pretty"
//	  },
//	  "history": {
//	    "defaultMode": "replace"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Addr())
package config
