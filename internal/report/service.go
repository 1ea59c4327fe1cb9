// Package report provides the HTTP handlers that generate, query and
// export seller performance reports, and the event publishers that
// announce them.
//
// All monetary values use shopspring/decimal, never float64.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atmx/sales-engine/internal/analysis"
	"github.com/atmx/sales-engine/internal/dataset"
	"github.com/atmx/sales-engine/internal/export"
	"github.com/atmx/sales-engine/internal/metrics"
	"github.com/atmx/sales-engine/internal/model"
	"github.com/atmx/sales-engine/internal/store"
)

// Report sources, used as metric labels.
const (
	SourceRequest = "request"
	SourceStore   = "store"
)

var (
	// ErrNoDataset is returned when the store holds no sellers yet.
	ErrNoDataset = errors.New("report: no dataset imported")

	// ErrSellerNotFound is returned when the requested seller is not part
	// of the current report.
	ErrSellerNotFound = errors.New("report: seller not found")
)

// Service generates reports from inline datasets or the stored snapshot.
// Every call runs the analysis from scratch; results are never stored.
type Service struct {
	store     store.Store
	opts      analysis.Options
	validator *dataset.Validator
	publisher Publisher // optional
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a new report service.
// Pass nil for pub if event publishing is not needed.
func NewService(st store.Store, opts analysis.Options, pub Publisher) *Service {
	return &Service{
		store:     st,
		opts:      opts,
		validator: dataset.NewValidator(),
		publisher: pub,
		tracer:    otel.Tracer("github.com/atmx/sales-engine/internal/report"),
		now:       time.Now,
	}
}

// --- Response types ---

// SellerRankResponse is the body of GET /reports/current/sellers/{sellerID}.
type SellerRankResponse struct {
	ReportID    string             `json:"report_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Rank        int                `json:"rank"` // 1-based
	Total       int                `json:"total"`
	Seller      model.SellerReport `json:"seller"`
}

// ImportResponse is the body returned from PUT /dataset.
type ImportResponse struct {
	Products        int `json:"products"`
	Sellers         int `json:"sellers"`
	Customers       int `json:"customers"`
	PurchaseRecords int `json:"purchase_records"`
}

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []dataset.FieldError `json:"fields,omitempty"`
}

// --- Core ---

// Generate runs the analysis over ds and wraps the result in a report
// envelope. A report_generated event is published on success.
func (s *Service) Generate(ctx context.Context, ds *model.Dataset, source string) (*model.Report, error) {
	var sellers, records int
	if ds != nil {
		sellers, records = len(ds.Sellers), len(ds.PurchaseRecords)
	}

	ctx, span := s.tracer.Start(ctx, "report.generate", trace.WithAttributes(
		attribute.String("report.source", source),
		attribute.Int("report.sellers", sellers),
		attribute.Int("report.purchase_records", records),
	))
	defer span.End()

	start := time.Now()
	result, err := analysis.Analyze(ds, s.opts)
	metrics.ReportLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ReportFailures.WithLabelValues(failureReason(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := &model.Report{
		ID:          uuid.NewString(),
		GeneratedAt: s.now().UTC(),
		Sellers:     result,
	}
	span.SetAttributes(attribute.String("report.id", report.ID))

	metrics.ReportsTotal.WithLabelValues(source).Inc()
	metrics.PurchaseRecordsProcessed.Add(float64(records))
	metrics.SellersRanked.Set(float64(len(result)))

	leader := result[0]
	slog.Info("report generated",
		"report_id", report.ID,
		"source", source,
		"sellers", len(result),
		"purchase_records", records,
		"leader", leader.SellerID,
		"leader_profit", leader.Profit.String(),
	)

	s.publish(ctx, Event{
		Type:            EventReportGenerated,
		ReportID:        report.ID,
		Timestamp:       report.GeneratedAt,
		Sellers:         len(result),
		PurchaseRecords: records,
		LeaderID:        leader.SellerID,
		LeaderProfit:    leader.Profit.StringFixed(2),
	})
	return report, nil
}

// Current generates a report over the stored dataset snapshot.
func (s *Service) Current(ctx context.Context) (*model.Report, error) {
	ds, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if len(ds.Sellers) == 0 {
		return nil, ErrNoDataset
	}
	return s.Generate(ctx, ds, SourceStore)
}

// Import validates ds and replaces the stored snapshot with it.
func (s *Service) Import(ctx context.Context, ds *model.Dataset) error {
	if err := s.validator.Validate(ds); err != nil {
		metrics.DatasetImports.WithLabelValues("invalid").Inc()
		return err
	}
	// Every backend rejects duplicate seller ids and SKUs the same way.
	if _, err := analysis.BuildIndex(ds.Sellers, ds.Products); err != nil {
		metrics.DatasetImports.WithLabelValues("invalid").Inc()
		return err
	}
	if err := s.store.ImportDataset(ctx, ds); err != nil {
		metrics.DatasetImports.WithLabelValues("error").Inc()
		return fmt.Errorf("import dataset: %w", err)
	}
	metrics.DatasetImports.WithLabelValues("ok").Inc()

	slog.Info("dataset imported",
		"products", len(ds.Products),
		"sellers", len(ds.Sellers),
		"customers", len(ds.Customers),
		"purchase_records", len(ds.PurchaseRecords),
	)

	s.publish(ctx, Event{
		Type:            EventDatasetImported,
		Timestamp:       s.now().UTC(),
		Sellers:         len(ds.Sellers),
		PurchaseRecords: len(ds.PurchaseRecords),
	})
	return nil
}

// publish is best effort: delivery failures are logged and never fail the
// request that triggered them.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("event publish failed", "type", ev.Type, "err", err)
	}
}

// --- HTTP Handlers ---

// CreateReport handles POST /api/v1/reports
// The body is a dataset; the report is computed over it without touching
// the store.
func (s *Service) CreateReport(w http.ResponseWriter, r *http.Request) {
	ds, err := decodeDataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.Generate(r.Context(), ds, SourceRequest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// CurrentReport handles GET /api/v1/reports/current
func (s *Service) CurrentReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.Current(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// SellerRank handles GET /api/v1/reports/current/sellers/{sellerID}
func (s *Service) SellerRank(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	report, err := s.Current(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	for i, sr := range report.Sellers {
		if sr.SellerID == sellerID {
			render.JSON(w, r, SellerRankResponse{
				ReportID:    report.ID,
				GeneratedAt: report.GeneratedAt,
				Rank:        i + 1,
				Total:       len(report.Sellers),
				Seller:      sr,
			})
			return
		}
	}
	s.fail(w, r, fmt.Errorf("%w: %s", ErrSellerNotFound, sellerID))
}

// ExportReport handles GET /api/v1/reports/current/export?format=csv|xlsx
func (s *Service) ExportReport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.Current(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Render fully before writing headers so failures still produce JSON.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, report.Sellers); err != nil {
		s.fail(w, r, err)
		return
	}

	filename := fmt.Sprintf("sales-report-%s.%s", report.ID, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Write(buf.Bytes())
}

// ImportDataset handles PUT /api/v1/dataset
func (s *Service) ImportDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := decodeDataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.Import(r.Context(), ds); err != nil {
		s.fail(w, r, err)
		return
	}

	render.JSON(w, r, ImportResponse{
		Products:        len(ds.Products),
		Sellers:         len(ds.Sellers),
		Customers:       len(ds.Customers),
		PurchaseRecords: len(ds.PurchaseRecords),
	})
}

// decodeDataset reads a JSON body, or YAML when the request says so.
func decodeDataset(r *http.Request) (*model.Dataset, error) {
	format := dataset.FormatJSON
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		switch mt {
		case "application/yaml", "application/x-yaml", "text/yaml":
			format = dataset.FormatYAML
		}
	}
	return dataset.Decode(r.Body, format)
}

// --- Errors ---

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *dataset.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, dataset.ErrMalformed),
		errors.Is(err, dataset.ErrUnsupportedFormat),
		errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoDataset),
		errors.Is(err, ErrSellerNotFound):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrInvalidInput),
		errors.Is(err, analysis.ErrUnknownSeller),
		errors.Is(err, analysis.ErrUnknownProduct),
		errors.Is(err, analysis.ErrDuplicateKey):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, analysis.ErrMissingStrategy):
		return "missing_strategy"
	case errors.Is(err, analysis.ErrUnknownSeller):
		return "unknown_seller"
	case errors.Is(err, analysis.ErrUnknownProduct):
		return "unknown_product"
	case errors.Is(err, analysis.ErrDuplicateKey):
		return "duplicate_key"
	}
	return "other"
}

// fail logs err and writes a JSON error response. Internal errors are not
// echoed to the client.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *dataset.ValidationError
	if errors.As(err, &verr) {
		resp.Error = dataset.ErrInvalid.Error()
		resp.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		resp.Error = http.StatusText(status)
	} else {
		slog.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
