package rpc

import (
	"errors"
	"net/http"

	nativecommon "saccochain/native/common"
	"saccochain/observability"
)

// quotaThrottled reports whether err is a quota rejection and, if so, the
// metrics reason label for it.
func quotaThrottled(err error) (string, bool) {
	switch {
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded):
		return "requests", true
	case errors.Is(err, nativecommon.ErrQuotaValueExceeded):
		return "value", true
	case errors.Is(err, nativecommon.ErrQuotaCounterOverflow):
		return "overflow", true
	default:
		return "", false
	}
}

// writeModuleGuardError handles the rejections shared by every module:
// per-address quotas and the pause switch. It reports true when err was one
// of them and the response has been written.
func writeModuleGuardError(w http.ResponseWriter, id int, module string, rateCode, pauseCode int, err error) bool {
	if reason, ok := quotaThrottled(err); ok {
		observability.ModuleMetrics().RecordThrottle(module, reason)
		writeError(w, http.StatusTooManyRequests, id, rateCode, "rate_limited", err.Error())
		return true
	}
	if errors.Is(err, nativecommon.ErrModulePaused) {
		writeError(w, http.StatusServiceUnavailable, id, pauseCode, "module_paused", err.Error())
		return true
	}
	return false
}

func writeInvalidParams(w http.ResponseWriter, id int, err error) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid params", err.Error())
}
