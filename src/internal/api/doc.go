// Package api provides the read-only HTTP status API of keen-dnsset.
//
// Endpoints:
//   - GET /health: liveness probe, plain "OK"
//   - GET /api/v1/status: version, uptime, loaded rule set and transports
//   - GET /api/v1/targets: every distinct nftables set target of the rule set
//   - GET /api/v1/match?domain=<name>: targets a domain name would be added to
//   - GET /metrics: Prometheus metrics
//
// Successful JSON responses wrap data in a "data" field:
//
//	{
//	  "data": { /* response payload */ }
//	}
//
// Error responses use the following format:
//
//	{
//	  "error": {
//	    "code": "ERROR_CODE",
//	    "message": "Human-readable error message"
//	  }
//	}
//
// Access is restricted to loopback and private networks.
package api
