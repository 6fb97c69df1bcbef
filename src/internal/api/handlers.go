package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

// Options carries everything the handlers report on.
type Options struct {
	Rules      *rules.RuleSet
	Version    VersionInfo
	Executor   string
	Transports []TransportInfo
	StartedAt  time.Time
}

// Handler serves the status endpoints. It only reads from the rule set.
type Handler struct {
	opts Options
	now  func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(opts Options) *Handler {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	return &Handler{opts: opts, now: time.Now}
}

// GetStatus returns version, uptime, rule set summary and transports.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	rs := h.opts.Rules
	transports := h.opts.Transports
	if transports == nil {
		transports = []TransportInfo{}
	}

	writeJSONData(w, StatusResponse{
		Version:       h.opts.Version,
		UptimeSeconds: int64(h.now().Sub(h.opts.StartedAt) / time.Second),
		Executor:      h.opts.Executor,
		RuleSet: RuleSetInfo{
			Path:     rs.Path(),
			Checksum: rs.Checksum(),
			Rules:    rs.Len(),
			Patterns: rs.Patterns(),
			Targets:  rs.TargetCount(),
		},
		Transports: transports,
	})
}

// GetTargets lists every distinct target in rule-file order.
// GET /api/v1/targets
func (h *Handler) GetTargets(w http.ResponseWriter, r *http.Request) {
	writeJSONData(w, TargetsResponse{Targets: targetInfos(h.opts.Rules.Targets())})
}

// Match returns the targets a domain name resolves into.
// GET /api/v1/match?domain=example.com
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		WriteInvalidRequest(w, "query parameter 'domain' is required")
		return
	}

	writeJSONData(w, MatchResponse{
		Domain:  domain,
		Targets: targetInfos(unique(h.opts.Rules.Match(domain))),
	})
}

// unique drops repeated targets; a name can reach the same set through
// several patterns.
func unique(targets []*nft.Target) []*nft.Target {
	seen := make(map[*nft.Target]struct{}, len(targets))
	out := targets[:0:0]
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func targetInfos(targets []*nft.Target) []TargetInfo {
	infos := make([]TargetInfo, 0, len(targets))
	for _, t := range targets {
		info := TargetInfo{
			Table:    t.Table,
			Set:      t.Set,
			ElemType: t.ElemType.String(),
			Timeout:  t.Timeout,
		}
		if t.Family.IsSpecified() {
			info.Family = t.Family.String()
		}
		infos = append(infos, info)
	}
	return infos
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// writeJSONData writes a successful JSON response with data.
func writeJSONData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}
