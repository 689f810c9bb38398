package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal     ErrorCode = "COMMON_001"
	ErrCodeBadRequest   ErrorCode = "COMMON_002"
	ErrCodeNotFound     ErrorCode = "COMMON_005"
	ErrCodeIO           ErrorCode = "COMMON_011"
	ErrCodeCanceled     ErrorCode = "COMMON_012"
	ErrCodeStorageError ErrorCode = "COMMON_013"
)

// Tree and conversion error codes
const (
	// ErrCodeStructureMismatch: two trees expected to be isomorphic differ in
	// their keys or leaf kinds.
	ErrCodeStructureMismatch ErrorCode = "CONV_001"
	// ErrCodeLookupMiss: a region, building type, fuel or end use present in the
	// data is absent from a translation table.
	ErrCodeLookupMiss ErrorCode = "CONV_002"
	// ErrCodeUnexpectedUnit: a unit string matches no conversion rule.
	ErrCodeUnexpectedUnit ErrorCode = "CONV_003"
	ErrCodeParse          ErrorCode = "CONV_004"
	ErrCodeWeightTable    ErrorCode = "CONV_005"
)

// Aliases used at call sites.
const (
	CodeOK                = ErrorCode("OK")
	CodeUnknown           = ErrorCode("UNKNOWN")
	CodeInternal          = ErrCodeInternal
	CodeInvalidParam      = ErrCodeBadRequest
	CodeNotFound          = ErrCodeNotFound
	CodeIO                = ErrCodeIO
	CodeCanceled          = ErrCodeCanceled
	CodeStorage           = ErrCodeStorageError
	CodeStructureMismatch = ErrCodeStructureMismatch
	CodeLookupMiss        = ErrCodeLookupMiss
	CodeUnexpectedUnit    = ErrCodeUnexpectedUnit
	CodeParse             = ErrCodeParse
	CodeWeightTable       = ErrCodeWeightTable
)

// ExitCode maps an error code to the process exit status used by the CLI.
func ExitCode(code ErrorCode) int {
	switch code {
	case CodeOK:
		return 0
	case CodeInvalidParam:
		return 2
	default:
		return 1
	}
}

//Personal.AI order the ending
