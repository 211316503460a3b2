package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldKind       = "kind"
	FieldRecordID   = "record_id"
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldCount      = "count"
	FieldPage       = "page"
	FieldLimit      = "limit"
	FieldTotal      = "total"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentQuery   = "query"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentBackup  = "backup"
	ComponentCache   = "cache"
	ComponentParser  = "parser"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
	OpList      = "list"
	OpQuery     = "query"
	OpImport    = "import"
	OpExport    = "export"
	OpParse     = "parse"
	OpBackup    = "backup"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
