package application

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/rohitxdev/nftsol-api/util"
)

// ProbeMessage is the message of the synthetic error sent once at startup.
const ProbeMessage = "Test Sentry in Go"

type capturer interface {
	CaptureException(err error) *sentry.EventID
}

// runProbe raises a synthetic error, catches it where it is raised and forwards it to r. Nothing escapes it.
func runProbe(r capturer) (eventID *sentry.EventID) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("self-test probe failed", slog.Any("panic", v))
			eventID = nil
		}
	}()

	_, raised, _ := util.CapturePanic(func() struct{} {
		panic(errors.New(ProbeMessage))
	})

	err, ok := raised.(error)
	if !ok {
		err = fmt.Errorf("%v", raised)
	}

	return r.CaptureException(err)
}
