package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/labreports/constants"
	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/entity"
	"github.com/joseph-ayodele/labreports/internal/labs"
)

const reportsTable = "lab_reports"

// timestamps are stored as fixed-width UTC text so they sort lexically on both dialects.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var reportColumns = []string{
	"id", "source_name", "source_type", "content_hash", "pages", "method",
	"confidence", "needs_review", "status", "error_message", "ocr_text",
	"records", "record_count", "abnormal_count", "created_at", "finished_at",
}

// ReportRepository persists lab reports through their pipeline stages:
// RUNNING -> OCR_OK -> PARSED, or FAILED from any non-terminal stage.
type ReportRepository interface {
	Start(ctx context.Context, sourceName, sourceType, contentHash string) (*entity.LabReport, error)
	FinishOCR(ctx context.Context, id uuid.UUID, out OCROutcome) error
	FinishParse(ctx context.Context, id uuid.UUID, records []labs.Record) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.LabReport, error)
	// GetByHash returns the most recent PARSED report with the given content hash.
	GetByHash(ctx context.Context, contentHash string) (*entity.LabReport, error)
	List(ctx context.Context, limit int) ([]*entity.LabReport, error)
}

// OCROutcome is what the OCR stage records on a report.
type OCROutcome struct {
	OCRText     string
	Pages       int
	Method      string
	Confidence  float32
	NeedsReview bool
}

type reportRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewReportRepository(db *DB, log *slog.Logger) ReportRepository {
	if log == nil {
		log = slog.Default()
	}
	return &reportRepo{db: db, log: log, now: time.Now}
}

func (r *reportRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *reportRepo) stamp() (time.Time, string) {
	t := r.now().UTC().Truncate(time.Microsecond)
	return t, t.Format(timeLayout)
}

func (r *reportRepo) Start(ctx context.Context, sourceName, sourceType, contentHash string) (*entity.LabReport, error) {
	created, createdStr := r.stamp()
	rep := &entity.LabReport{
		ID:          uuid.New(),
		SourceName:  sourceName,
		SourceType:  sourceType,
		ContentHash: contentHash,
		Status:      constants.JobStatusRunning,
		Records:     []labs.Record{},
		CreatedAt:   created,
	}
	query, args := r.builder().Insert(reportsTable).
		Columns("id", "source_name", "source_type", "content_hash", "status", "records", "created_at").
		Values(rep.ID.String(), sourceName, sourceType, contentHash, string(rep.Status), "[]", createdStr).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("lab_report start failed", "source", sourceName, "err", err)
		return nil, dbError("start report", err)
	}
	r.log.Info("lab_report started", "report_id", rep.ID, "source", sourceName, "source_type", sourceType)
	return rep, nil
}

func (r *reportRepo) FinishOCR(ctx context.Context, id uuid.UUID, out OCROutcome) error {
	err := r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("ocr_text", out.OCRText).
			Set("pages", out.Pages).
			Set("method", out.Method).
			Set("confidence", float64(out.Confidence)).
			Set("needs_review", out.NeedsReview).
			Set("status", string(constants.JobStatusOCROK))
	})
	if err != nil {
		r.log.Error("lab_report finish(OCR_OK) failed", "report_id", id, "err", err)
		return err
	}
	r.log.Info("lab_report finished (OCR_OK)", "report_id", id, "method", out.Method, "pages", out.Pages)
	return nil
}

func (r *reportRepo) FinishParse(ctx context.Context, id uuid.UUID, records []labs.Record) error {
	if records == nil {
		records = []labs.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return common.WrapError(err, "encode records")
	}
	sum := labs.Summarize(records)
	_, finished := r.stamp()
	err = r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("records", string(payload)).
			Set("record_count", sum.Total).
			Set("abnormal_count", sum.NeedsAttention).
			Set("status", string(constants.JobStatusParsed)).
			Set("finished_at", finished)
	})
	if err != nil {
		r.log.Error("lab_report finish(PARSED) failed", "report_id", id, "err", err)
		return err
	}
	r.log.Info("lab_report finished (PARSED)", "report_id", id, "records", sum.Total, "needs_attention", sum.NeedsAttention)
	return nil
}

func (r *reportRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	_, finished := r.stamp()
	err := r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("status", string(constants.JobStatusFailed)).
			Set("error_message", message).
			Set("finished_at", finished)
	})
	if err != nil {
		r.log.Error("lab_report finish(FAILED) failed", "report_id", id, "err", err)
		return err
	}
	r.log.Warn("lab_report finished (FAILED)", "report_id", id, "error", message)
	return nil
}

// update applies set to the row with id, refusing to touch terminal rows.
func (r *reportRepo) update(ctx context.Context, id uuid.UUID, set func(*entsql.UpdateBuilder)) error {
	b := r.builder()
	u := b.Update(reportsTable)
	set(u)
	query, args := u.Where(entsql.And(
		entsql.EQ("id", id.String()),
		entsql.NotIn("status", string(constants.JobStatusParsed), string(constants.JobStatusFailed)),
	)).Query()
	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		return dbError("update report", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError("update report", err)
	}
	if n == 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("no open report %s", id), common.ErrNotFound)
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.LabReport, error) {
	b := r.builder()
	query, args := b.Select(reportColumns...).
		From(b.Table(reportsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	rep, err := r.queryOne(ctx, query, args)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("report %s not found", id), common.ErrNotFound)
	}
	return rep, err
}

func (r *reportRepo) GetByHash(ctx context.Context, contentHash string) (*entity.LabReport, error) {
	b := r.builder()
	query, args := b.Select(reportColumns...).
		From(b.Table(reportsTable)).
		Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("status", string(constants.JobStatusParsed)),
		)).
		OrderExpr(entsql.Expr("created_at DESC")).
		Limit(1).
		Query()
	rep, err := r.queryOne(ctx, query, args)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "no report for content hash", common.ErrNotFound)
	}
	return rep, err
}

func (r *reportRepo) List(ctx context.Context, limit int) ([]*entity.LabReport, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	b := r.builder()
	query, args := b.Select(reportColumns...).
		From(b.Table(reportsTable)).
		OrderExpr(entsql.Expr("created_at DESC")).
		Limit(limit).
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list reports", err)
	}
	defer rows.Close()

	out := make([]*entity.LabReport, 0, limit)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list reports", err)
	}
	return out, nil
}

func (r *reportRepo) queryOne(ctx context.Context, query string, args []any) (*entity.LabReport, error) {
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query report", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, dbError("query report", err)
		}
		return nil, sql.ErrNoRows
	}
	return scanReport(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(rs rowScanner) (*entity.LabReport, error) {
	var (
		rep               entity.LabReport
		id, status        string
		records           string
		created, finished string
		confidence        float64
	)
	err := rs.Scan(&id, &rep.SourceName, &rep.SourceType, &rep.ContentHash, &rep.Pages, &rep.Method,
		&confidence, &rep.NeedsReview, &status, &rep.ErrorMessage, &rep.OCRText,
		&records, &rep.RecordCount, &rep.AbnormalCount, &created, &finished)
	if err != nil {
		return nil, dbError("scan report", err)
	}
	if rep.ID, err = uuid.Parse(id); err != nil {
		return nil, dbError("scan report id", err)
	}
	rep.Status = constants.JobStatus(status)
	rep.Confidence = float32(confidence)
	if err := json.Unmarshal([]byte(records), &rep.Records); err != nil {
		return nil, dbError("decode records", err)
	}
	if rep.Records == nil {
		rep.Records = []labs.Record{}
	}
	if rep.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, dbError("parse created_at", err)
	}
	if finished != "" {
		t, err := time.Parse(timeLayout, finished)
		if err != nil {
			return nil, dbError("parse finished_at", err)
		}
		rep.FinishedAt = &t
	}
	return &rep, nil
}

func dbError(op string, err error) error {
	return common.NewAppError("DB_ERROR", op, fmt.Errorf("%w: %v", common.ErrDatabase, err))
}
