// Package config loads and validates the coven-client YAML configuration.
//
// Configuration files support ${VAR_NAME} environment variable expansion
// and human-readable duration strings ("5m", "1500ms") for time fields.
//
// Example:
//
//	gateway:
//	  endpoint: wss://gateway.example.com/ws
//	auth:
//	  token: ${COVEN_TOKEN}
//	permission:
//	  window: 5m
//	voice:
//	  mode: vad
//	  sample_rate: 16000
//	  chunk_samples: 1920
//	  silence_timeout: 1500ms
//	collab:
//	  base_url: https://gateway.example.com
//	logging:
//	  level: info
//	  format: text
package config
