package router

import (
	"github.com/google/uuid"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Request is one routed update.
type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string // command word or "cb:<action>"
	Args    []string
	ReqID   string
	Logger  logx.Logger
}

func (r *Request) logger(fallback logx.Logger) logx.Logger {
	if r != nil && !r.Logger.IsZero() {
		return r.Logger
	}
	return fallback
}

func newReqID() string {
	return uuid.NewString()[:8]
}
