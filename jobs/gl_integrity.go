package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/journals"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	jobmetrics "github.com/ksfraser/ksf-reports/internal/jobs"
)

// IntegrityReport summarises one scan of the general ledger.
type IntegrityReport struct {
	From         time.Time
	To           time.Time
	Transactions int
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	Unbalanced   []journals.Transaction
}

// Balanced reports whether every scanned transaction balanced.
func (r IntegrityReport) Balanced() bool {
	return len(r.Unbalanced) == 0
}

// RunGLIntegrityCheck groups the ledger rows in [from, to] into transactions
// and reports those whose debits and credits differ.
func RunGLIntegrityCheck(ctx context.Context, source accounting.LedgerSource, from, to time.Time, filter accounting.RowFilter, logger *slog.Logger) (IntegrityReport, error) {
	if source == nil {
		return IntegrityReport{}, errors.New("gl integrity: source not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	from, to = periods.Day(from), periods.Day(to)
	if from.After(to) {
		return IntegrityReport{}, fmt.Errorf("gl integrity: from %s after to %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	journal, err := journals.Load(ctx, source, from, to, filter)
	if err != nil {
		return IntegrityReport{}, err
	}
	report := IntegrityReport{
		From:         from,
		To:           to,
		Transactions: journal.TransactionCount,
		TotalDebit:   journal.TotalDebit,
		TotalCredit:  journal.TotalCredit,
		Unbalanced:   journal.Unbalanced(),
	}
	for _, tx := range report.Unbalanced {
		logger.Warn("unbalanced transaction",
			slog.Int("type", tx.Type),
			slog.Int64("sequence", tx.SequenceNo),
			slog.String("date", tx.Date.Format(time.DateOnly)),
			slog.String("difference", tx.Difference().StringFixed(2)),
		)
	}
	logger.Info("GL integrity check executed",
		slog.String("job", TaskGLIntegrity),
		slog.String("from", from.Format(time.DateOnly)),
		slog.String("to", to.Format(time.DateOnly)),
		slog.Int("transactions", report.Transactions),
		slog.Int("unbalanced", len(report.Unbalanced)),
	)
	return report, nil
}

// UnbalancedRecorder counts unbalanced transactions found by a scan.
type UnbalancedRecorder interface {
	AddUnbalanced(source string, count int)
}

// GLIntegrityJob runs the integrity scan on a schedule.
type GLIntegrityJob struct {
	Source   accounting.LedgerSource
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Recorder UnbalancedRecorder
	clock    func() time.Time
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(source accounting.LedgerSource, logger *slog.Logger, metrics *jobmetrics.Metrics, recorder UnbalancedRecorder) *GLIntegrityJob {
	return &GLIntegrityJob{
		Source:   source,
		Logger:   logger,
		Metrics:  metrics,
		Recorder: recorder,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskGLIntegrity tasks. Unbalanced transactions are
// counted and logged; they do not fail the task.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	now := j.now()
	to, err := parseDay(payload.To, now)
	if err != nil {
		return fmt.Errorf("gl integrity: to: %v: %w", err, asynq.SkipRetry)
	}
	defaultFrom := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	from, err := parseDay(payload.From, defaultFrom)
	if err != nil {
		return fmt.Errorf("gl integrity: from: %v: %w", err, asynq.SkipRetry)
	}
	if from.After(to) {
		return fmt.Errorf("gl integrity: reversed range: %w", asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskGLIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	report, err := RunGLIntegrityCheck(ctx, j.Source, from, to, accounting.RowFilter{Types: payload.Types}, j.logger())
	if err != nil {
		return err
	}
	if j.Recorder != nil {
		j.Recorder.AddUnbalanced("job", len(report.Unbalanced))
	}
	return nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
