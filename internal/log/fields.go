package log

// Common field names for structured logging.
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

	FieldHouseID       = "house_id"
	FieldMonth         = "month"
	FieldPeriod        = "period"
	FieldTransactionID = "transaction_id"
	FieldAmountRupiah  = "amount_rupiah"
	FieldEventKind     = "event_kind"
	FieldUsername      = "username"
	FieldRole          = "role"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAuth    = "auth"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentProofs  = "proofs"
)
