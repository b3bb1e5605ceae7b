package tracker

import (
	"time"

	"github.com/mnordin/composite-hass/internal/source"
	"github.com/sirupsen/logrus"
)

type entityStatus int

const (
	statusInactive entityStatus = iota
	statusActive
	statusWarned
	statusSuspended
)

// entityData tracks the per-source bookkeeping the acceptance engine needs:
// the last accepted update, the source's classification, and a diagnostic
// escalation ladder for sources that keep producing bad updates.
type entityData struct {
	id         string
	allStates  bool
	usePicture bool

	status     entityStatus
	seen       time.Time
	kind       source.Kind
	sourceType string
	fix        *source.Fix // gps sources: last accepted fix
	state      string      // non-gps sources: last normalized state
}

// good records a successfully processed update and resets the ladder.
func (e *entityData) good(seen time.Time, snap *source.Snapshot) {
	e.status = statusActive
	e.seen = seen
	e.kind = snap.Kind
	e.sourceType = snap.SourceType
	e.fix = snap.GPS
	e.state = snap.State
}

// bad reports a problem with a source update. The first failure is logged at
// debug, a repeat at warning, a third at error, after which the source's
// diagnostics are suspended. Any good update resets the ladder.
func (e *entityData) bad(logger *logrus.Entry, msg string) {
	if e.status == statusSuspended {
		return
	}
	log := logger.WithField("source", e.id)
	switch e.status {
	case statusWarned:
		log.Error(msg)
		e.status = statusSuspended
	case statusActive:
		log.Warn(msg)
		e.status = statusWarned
	default:
		log.Debug(msg)
		e.status = statusActive
	}
}
