package notifier

import (
	"log/slog"

	"github.com/akarpov/jobscout/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes each new record to the log. The default notifier.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each record on its own line.
func (n *LogNotifier) Notify(records []model.JobRecord) error {
	for _, r := range records {
		n.logger.Info("new vacancy",
			"source", r.SourceID,
			"title", r.Title,
			"company", r.Company,
			"location", r.Location,
			"salary", r.Salary,
			"url", r.URL,
		)
	}
	return nil
}
