package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldKey        = "key"
	FieldEntity     = "entity"
	FieldID         = "id"
	FieldCount      = "count"
	FieldDriver     = "driver"
	FieldAddr       = "addr"
)

// Component names.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentStore       = "store"
	ComponentPersistence = "persistence"
	ComponentEvents      = "events"
	ComponentReport      = "report"
	ComponentSeed        = "seed"
	ComponentExports     = "exports"
)

// Operation names.
const (
	OpLoad     = "load"
	OpSave     = "save"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpPublish  = "publish"
	OpGenerate = "generate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
