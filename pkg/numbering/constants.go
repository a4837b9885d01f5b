package numbering

const (
	operationReserve   = "reserve"
	operationFinalize  = "finalize"
	operationRelease   = "release"
	operationPeek      = "peek"
	operationSetFormat = "set_format"
	operationEnsure    = "ensure_counter"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
