// Package config handles configuration loading for mediflow.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The file extension picks the format: ".toml" is TOML, anything
// else is YAML.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from MEDIFLOW_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/mediflow/config.yaml (~/.config/mediflow/config.yaml)
//
// # Environment Variable Expansion
//
//	credentials:
//	  encryption_key: "${MEDIFLOW_ENCRYPTION_KEY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "~/.local/share/mediflow/mediflow.db"
//
//	auth:
//	  jwt_secret: "${MEDIFLOW_JWT_SECRET}"   # empty disables API auth
//	  token_ttl: "720h"
//
//	credentials:
//	  encryption_key: "${MEDIFLOW_ENCRYPTION_KEY}"   # required
//
//	responder:
//	  kind: "stub"      # stub, openai
//	  model: "gpt-4o-mini"
//	  base_url: ""
//	  latency: "2s"
//	  jitter: "0s"
//	  timeout: "60s"
//
//	diagram:
//	  render_delay: "800ms"
//
//	plans:
//	  basic_daily_limit: 5   # 0 disables the limit
//
//	idempotency:
//	  ttl: "10m"
//	  max_keys: 1000
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
