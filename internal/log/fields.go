package log

// Attribute keys shared by every component.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldUser      = "user"
	FieldRole      = "role"
	FieldError     = "error"
	FieldOperation = "operation"
)

// HTTP request attributes.
const (
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
)

// Resolution attributes.
const (
	FieldDailySaleID = "daily_sale_id"
	FieldResolution  = "resolution_type"
	FieldRows        = "rows"
	FieldTotalCents  = "total_cents"
	FieldReference   = "reference"
)

const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentResolution = "resolution"
	ComponentReports    = "reports"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentTemplate   = "template"
)

const (
	OpRead    = "read"
	OpList    = "list"
	OpResolve = "resolve"
	OpParse   = "parse"
)
