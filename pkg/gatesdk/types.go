package gatesdk

// Endpoint paths served by the gate.
const (
	DecisionPath    = "/wdb/api/cantaloupe_auth"
	AuthContextPath = "/wdb/api/iiif_token/"
	LivezPath       = "/livez"
	ReadyzPath      = "/readyz"
)

// DecisionRequest is the body of the decision endpoint.
type DecisionRequest struct {
	Identifier     string            `json:"identifier"`
	RequestURI     string            `json:"request_uri,omitempty"`
	ClientIP       string            `json:"client_ip,omitempty"`
	Cookies        []string          `json:"cookies,omitempty"`
	Token          string            `json:"token,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
}

// DecisionResponse is the verdict returned by the decision endpoint.
type DecisionResponse struct {
	Authorized bool   `json:"authorized"`
	Reason     string `json:"reason,omitempty"`
}

// AuthContextResponse is returned by the token refresh endpoint and embedded
// into viewer pages.
type AuthContextResponse struct {
	Token      string `json:"token"`
	Param      string `json:"param"`
	TTL        int64  `json:"ttl"`
	RefreshURL string `json:"refresh_url"`
}

// HealthResponse is returned by the livez and readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the dependency checks run by readyz.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
	Secret   string `json:"secret,omitempty"`
	Sessions string `json:"sessions,omitempty"`
}

// ErrorResponse is the body of non-decision error responses.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
