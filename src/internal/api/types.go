package api

// DataResponse wraps successful responses with a "data" field.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// VersionInfo contains build version information.
type VersionInfo struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Commit  string `json:"commit"`
}

// TransportInfo describes one ingestion transport of the running service.
type TransportInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	// Source is the NFLOG group or the socket path.
	Source string `json:"source,omitempty"`
}

// RuleSetInfo summarizes the loaded rule file.
type RuleSetInfo struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Rules    int    `json:"rules"`
	Patterns int    `json:"patterns"`
	Targets  int    `json:"targets"`
}

// StatusResponse returns service status information.
type StatusResponse struct {
	Version       VersionInfo     `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Executor      string          `json:"executor"`
	RuleSet       RuleSetInfo     `json:"rule_set"`
	Transports    []TransportInfo `json:"transports"`
}

// TargetInfo is one nftables set target.
type TargetInfo struct {
	Family   string `json:"family,omitempty"`
	Table    string `json:"table"`
	Set      string `json:"set"`
	ElemType string `json:"elem_type"`
	Timeout  string `json:"timeout,omitempty"`
}

// TargetsResponse returns all distinct targets.
type TargetsResponse struct {
	Targets []TargetInfo `json:"targets"`
}

// MatchResponse returns the targets matching a domain name.
type MatchResponse struct {
	Domain  string       `json:"domain"`
	Targets []TargetInfo `json:"targets"`
}
