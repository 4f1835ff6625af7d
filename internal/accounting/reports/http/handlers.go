package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/reports"
	"github.com/ksfraser/ksf-reports/internal/accounting/reports/export"
	"github.com/ksfraser/ksf-reports/internal/platform/httpx"
)

const defaultTimeout = 30 * time.Second

// Runner executes a named report.
type Runner interface {
	Run(ctx context.Context, name string, req reports.Request) (reports.Result, error)
}

// Handler serves report results as JSON and CSV.
type Handler struct {
	logger    *slog.Logger
	service   Runner
	validator *validator.Validate
	timeout   time.Duration
	csvPool   sync.Pool
}

// NewHandler constructs the report handler. A zero timeout uses 30s.
func NewHandler(logger *slog.Logger, service Runner, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		timeout:   timeout,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

type reportQuery struct {
	From            string `validate:"omitempty,datetime=2006-01-02"`
	To              string `validate:"omitempty,datetime=2006-01-02"`
	FiscalYearBegin string `validate:"omitempty,datetime=2006-01-02"`
	YearEnd         int    `validate:"omitempty,min=1900,max=9999"`
	YearEndMonth    int    `validate:"omitempty,min=1,max=12"`
	Dimension1      int64  `validate:"min=0"`
	Dimension2      int64  `validate:"min=0"`
	Account         string `validate:"omitempty,max=15,alphanum"`
	Types           []int  `validate:"dive,min=0"`
	Lang            string `validate:"omitempty,bcp47_language_tag"`
}

type presetView struct {
	Name   string         `json:"name"`
	Title  string         `json:"title"`
	Layout reports.Layout `json:"layout"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	presets := reports.Presets()
	out := make([]presetView, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetView{Name: p.Name, Title: p.Title, Layout: p.Layout})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	result, _, ok := h.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Report-Run", result.RunID)
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	result, query, ok := h.run(w, r)
	if !ok {
		return
	}
	opts := export.Options{}
	if query.Lang != "" {
		tag, err := language.Parse(query.Lang)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: lang: %v", httpx.ErrValidation, err))
			return
		}
		opts.Language = tag
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteCSV(buf, result, opts); err != nil {
		h.handleServerError(w, "write csv", err)
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", result.Report, result.To)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("X-Report-Run", result.RunID)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) (reports.Result, reportQuery, bool) {
	name := chi.URLParam(r, "report")
	query, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return reports.Result{}, query, false
	}
	req, err := query.request()
	if err != nil {
		httpx.RespondError(w, err)
		return reports.Result{}, query, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	result, err := h.service.Run(ctx, name, req)
	if err != nil {
		if errors.Is(err, reports.ErrAccountRequired) || errors.Is(err, reports.ErrInvalidConfig) {
			err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		h.logger.Warn("report request failed", slog.String("report", name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return reports.Result{}, query, false
	}
	return result, query, true
}

func (h *Handler) parseQuery(r *http.Request) (reportQuery, error) {
	values := r.URL.Query()
	get := func(key string) string { return strings.TrimSpace(values.Get(key)) }
	q := reportQuery{
		From:            get("from"),
		To:              get("to"),
		FiscalYearBegin: get("fiscal_year_begin"),
		Account:         get("account"),
		Lang:            get("lang"),
	}

	var err error
	if q.YearEnd, err = parseInt(get("year_end")); err != nil {
		return q, fmt.Errorf("%w: year_end", httpx.ErrValidation)
	}
	if q.YearEndMonth, err = parseInt(get("year_end_month")); err != nil {
		return q, fmt.Errorf("%w: year_end_month", httpx.ErrValidation)
	}
	if q.Dimension1, err = parseInt64(get("dimension1")); err != nil {
		return q, fmt.Errorf("%w: dimension1", httpx.ErrValidation)
	}
	if q.Dimension2, err = parseInt64(get("dimension2")); err != nil {
		return q, fmt.Errorf("%w: dimension2", httpx.ErrValidation)
	}
	if raw := get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return q, fmt.Errorf("%w: types", httpx.ErrValidation)
			}
			q.Types = append(q.Types, t)
		}
	}

	if err := h.validator.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return q, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, "; "))
		}
		return q, err
	}
	return q, nil
}

func (q reportQuery) request() (reports.Request, error) {
	from, err := parseDate(q.From)
	if err != nil {
		return reports.Request{}, err
	}
	to, err := parseDate(q.To)
	if err != nil {
		return reports.Request{}, err
	}
	begin, err := parseDate(q.FiscalYearBegin)
	if err != nil {
		return reports.Request{}, err
	}
	return reports.Request{
		From:            from,
		To:              to,
		FiscalYearBegin: begin,
		YearEnd:         q.YearEnd,
		YearEndMonth:    time.Month(q.YearEndMonth),
		Dimensions:      accounting.Dimensions{Dimension1: q.Dimension1, Dimension2: q.Dimension2},
		AccountCode:     q.Account,
		Types:           q.Types,
	}, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", httpx.ErrValidation, raw)
	}
	return t, nil
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
