package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"syscall"

	"google.golang.org/api/googleapi"
)

type errTmpIf interface{ Temporary() bool }
type errTmp struct{ error }

func (t *errTmp) Temporary() bool { return true }
func (t *errTmp) Unwrap() error   { return t.error }

// MakeTemporary marks the error as transient: the job or the request can be retried
func MakeTemporary(err error) error { return &errTmp{err} }

type errFatalIf interface{ Fatal() bool }
type errFatal struct{ error }

func (t *errFatal) Fatal() bool   { return true }
func (t *errFatal) Unwrap() error { return t.error }

// MakeFatal marks the error as permanent: Retriable stops at once
func MakeFatal(err error) error { return &errFatal{err} }

// Temporary inspects the error trace and returns whether the error is transient
// (explicitly marked, network timeout, some syscall errors, 429/500 from google apis or context errors)
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	var tmp errTmpIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}

	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return true
		}
		err = uerr.Err
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
			return true
		}
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code >= 500
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Fatal returns whether the error has been marked as fatal
func Fatal(err error) bool {
	var tmp errFatalIf
	return errors.As(err, &tmp) && tmp.Fatal()
}

// MergeErrors merges the errors into one, appending their messages.
// The wrapped error is chosen by priority:
// if priorityToError, the permanent error, then the temporary one,
// else no error, then the temporary error, then the permanent one.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	for _, newErr := range newErrs {
		switch {
		case newErr == nil:
			if !priorityToError {
				return nil
			}
		case err == nil:
			err = newErr
		case priorityToError != Temporary(err):
			err = fmt.Errorf("%w\n %v", err, newErr)
		default:
			err = fmt.Errorf("%w\n %v", newErr, err)
		}
	}
	return err
}
