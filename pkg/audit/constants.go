package audit

const (
	operationAppend = "append"
	operationVerify = "verify"
	operationExport = "export"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	firstSequence = int64(1)
)
