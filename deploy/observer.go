package deploy

import (
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/types"
)

// LogObserver renders stage events as structured log lines.
func LogObserver(logger *log.Logger) types.Observer {
	if logger == nil {
		logger = log.Nop()
	}
	return func(e types.StageEvent) {
		fields := make(map[string]any, len(e.Fields)+3)
		for k, v := range e.Fields {
			fields[k] = v
		}
		fields["stage"] = string(e.Stage)
		if e.Step != "" {
			fields["step"] = e.Step
		}
		if e.Message != "" {
			fields["detail"] = e.Message
		}

		switch e.Status {
		case types.StatusFailed:
			logger.Error("stage failed", fields)
		case types.StatusAdvisory:
			logger.Warn("stage advisory", fields)
		case types.StatusSkipped:
			logger.Info("stage skipped", fields)
		case types.StatusOK:
			logger.Info("stage finished", fields)
		default:
			logger.Debug("stage progress", fields)
		}
	}
}

// Chain fans events out to every non-nil observer in order.
func Chain(observers ...types.Observer) types.Observer {
	return func(e types.StageEvent) {
		for _, o := range observers {
			o.Emit(e)
		}
	}
}
