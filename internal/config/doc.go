// Package config provides configuration parsing for the deeplink server.
//
// The configuration is stored in deeplink.json next to the route file.
// This package handles loading, saving, environment overrides and
// validation.
//
// # Configuration File Structure
//
//	{
//	  "host": "0.0.0.0",
//	  "port": 8080,
//	  "routes": "routes.yaml",
//	  "routesSource": "file",
//	  "s3": {
//	    "bucket": "my-config",
//	    "key": "deeplink/routes.yaml",
//	    "region": "eu-west-1"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics"
//	  },
//	  "tracing": {
//	    "serviceName": "deeplink"
//	  },
//	  "websocket": {
//	    "path": "/ws",
//	    "readTimeout": "60s"
//	  },
//	  "logLevel": "info"
//	}
//
// DEEPLINK_HOST, DEEPLINK_PORT and DEEPLINK_LOG_LEVEL override the file.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ApplyEnv(os.Getenv); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
