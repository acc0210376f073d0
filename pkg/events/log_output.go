package events

import "github.com/sirupsen/logrus"

// LogOutput writes events as structured log lines.
type LogOutput struct {
	log *logrus.Entry
}

func NewLogOutput(log *logrus.Entry) *LogOutput {
	return &LogOutput{log: log}
}

func (o *LogOutput) Write(event Event) error {
	fields := logrus.Fields{"kind": event.Kind}
	if event.Room != "" {
		fields["room"] = event.Room
	}
	if event.Topic != "" {
		fields["topic"] = event.Topic
	}
	if event.Value != nil {
		fields["value"] = *event.Value
	}
	if event.Operation != "" {
		fields["operation"] = event.Operation
	}
	if event.Command != "" {
		fields["command"] = event.Command
	}
	if event.Attempt > 0 {
		fields["attempt"] = event.Attempt
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	entry := o.log.WithFields(fields)

	switch event.Kind {
	case SensorFaultRaised, BackendFaultRaised, BackendExhausted:
		entry.Error("event")
	case ReadingRejected, MessageDiscarded, BackendAttempt:
		entry.Warn("event")
	case ReadingAccepted:
		entry.Debug("event")
	default:
		entry.Info("event")
	}
	return nil
}
