package commands

import (
	"errors"
	"strings"

	"github.com/tidwall/redcon"

	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

// Error reply prefixes, one per error class.
const (
	PrefixValidation = "VALIDATION"
	PrefixExecution  = "EXECUTION"
	PrefixMalformed  = "MALFORMED"
	PrefixFailed     = "FAILED"
	PrefixIllegal    = "ILLEGAL"
	PrefixConflict   = "CONFLICT"
	PrefixNotStarted = "NOTSTARTED"
	PrefixErr        = "ERR"
)

// replyClasses is checked in order, the first class err matches wins. A failed
// manager may wrap the illegal transition that stopped it.
var replyClasses = []struct {
	prefix  string
	class   error
	aliases []error
}{
	{PrefixMalformed, zerrors.ErrMalformed, nil},
	{PrefixFailed, zerrors.ErrClusterFailed, nil},
	{PrefixIllegal, zerrors.ErrIllegalTransition, nil},
	{PrefixConflict, zerrors.ErrVersionConflict, nil},
	{PrefixNotStarted, zerrors.ErrNotStarted, nil},
	{PrefixValidation, zerrors.ErrValidation,
		[]error{zerrors.ErrEmptyChangePlan, zerrors.ErrChangePlanInProgress, zerrors.ErrNoChangePlan}},
	{PrefixExecution, zerrors.ErrExecution, []error{zerrors.ErrOperationTimeout}},
}

// ErrorPrefix returns the reply prefix for err.
func ErrorPrefix(err error) string {
	for _, c := range replyClasses {
		if errors.Is(err, c.class) {
			return c.prefix
		}
		for _, alias := range c.aliases {
			if errors.Is(err, alias) {
				return c.prefix
			}
		}
	}
	return PrefixErr
}

// ErrorReply formats err as a single line RESP error.
func ErrorReply(err error) string {
	msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(err.Error())
	return ErrorPrefix(err) + " " + msg
}

// ParseErrorReply maps a reply produced by ErrorReply back to its error
// class. The returned error wraps the class sentinel and keeps the message.
func ParseErrorReply(reply string) error {
	prefix, msg, _ := strings.Cut(reply, " ")
	for _, c := range replyClasses {
		if c.prefix == prefix {
			return &ReplyError{Class: c.class, Message: msg}
		}
	}
	return errors.New(reply)
}

// ReplyError is an error returned by a remote node.
type ReplyError struct {
	Class   error
	Message string
}

func (e *ReplyError) Error() string { return e.Message }

func (e *ReplyError) Unwrap() error { return e.Class }

// writeError writes err to conn and returns it so callers can record it.
func writeError(conn redcon.Conn, err error) error {
	conn.WriteError(ErrorReply(err))
	return err
}
