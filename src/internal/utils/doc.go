// Package utils provides small helpers shared across keen-dnsset.
//
//   - Domain helpers: ASCII-only normalisation and label-suffix iteration
//     used by the rule matcher
//   - Path utilities: resolve paths relative to the config directory
//   - File utilities: close resources and log failures
//
// Path resolution:
//
//	absPath := utils.GetAbsolutePath("rules.conf", "/opt/etc/keen-dnsset")
//	// Returns: /opt/etc/keen-dnsset/rules.conf
package utils
