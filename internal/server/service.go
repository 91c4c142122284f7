package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/entity"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

// DocumentProcessor is the pipeline as seen by the transports.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, name string, content []byte) (processor.Result, error)
	ProcessText(ctx context.Context, name, text string) (processor.Result, error)
}

// ReportReader is the read side of the report store.
type ReportReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.LabReport, error)
	List(ctx context.Context, limit int) ([]*entity.LabReport, error)
}

// DefaultListLimit caps ListReports and GET /reports.
const DefaultListLimit = 50

type LabReportService struct {
	proc      DocumentProcessor
	reports   ReportReader
	maxUpload int64
	logger    *slog.Logger
}

func NewLabReportService(proc DocumentProcessor, reports ReportReader, maxUpload int64, logger *slog.Logger) *LabReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &LabReportService{proc: proc, reports: reports, maxUpload: maxUpload, logger: logger}
}

var _ LabReportServer = (*LabReportService)(nil)

func (s *LabReportService) ExtractText(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	res, err := s.proc.ProcessText(ctx, "grpc", req.GetValue())
	return s.envelope(res, err)
}

func (s *LabReportService) ExtractDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	filename := strings.TrimSpace(fields["filename"].GetStringValue())
	encoded := fields["content_base64"].GetStringValue()

	v := common.NewValidator()
	v.Field("filename", filename, common.Required, common.MaxLength(255))
	v.Field("content_base64", encoded, common.Required)
	if v.HasErrors() {
		s.logger.Error("extract document request invalid", "error", v.ErrorMessage())
		return nil, common.InvalidArgumentError(v.ErrorMessage())
	}
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > s.maxUpload+2 {
		return nil, common.InvalidArgumentErrorf("document exceeds %d bytes", s.maxUpload)
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.logger.Error("extract document content not base64", "filename", filename, "error", err)
		return nil, common.InvalidArgumentError("content_base64 must be standard base64")
	}
	if int64(len(content)) > s.maxUpload {
		return nil, common.InvalidArgumentErrorf("document exceeds %d bytes", s.maxUpload)
	}

	s.logger.Info("extracting document", "filename", filename, "bytes", len(content))
	res, err := s.proc.ProcessDocument(ctx, filename, content)
	return s.envelope(res, err)
}

func (s *LabReportService) GetReport(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := common.ParseID("report_id", req.GetValue())
	if err != nil {
		s.logger.Error("invalid report id format", "id", req.GetValue(), "error", err)
		return nil, common.ToGRPC(err)
	}
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("get report failed", "report_id", id, "error", err)
		}
		return nil, common.ToGRPC(err)
	}
	out, err := toStruct(toView(rep, true))
	if err != nil {
		return nil, common.InternalError(fmt.Sprintf("encode report: %v", err))
	}
	return out, nil
}

func (s *LabReportService) ListReports(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	reps, err := s.reports.List(ctx, DefaultListLimit)
	if err != nil {
		s.logger.Error("list reports failed", "error", err)
		return nil, common.ToGRPC(err)
	}
	views := make([]reportView, 0, len(reps))
	for _, r := range reps {
		views = append(views, toView(r, false))
	}
	out, err := toStruct(map[string]any{"reports": views})
	if err != nil {
		return nil, common.InternalError(fmt.Sprintf("encode reports: %v", err))
	}
	return out, nil
}

// envelope reports pipeline outcomes in-band; only store failures become gRPC errors.
func (s *LabReportService) envelope(res processor.Result, err error) (*structpb.Struct, error) {
	if err != nil && errors.Is(err, common.ErrDatabase) {
		s.logger.Error("processing failed on storage", "error", err)
		return nil, common.ToGRPC(err)
	}
	out, encErr := toStruct(processor.NewEnvelope(res, err))
	if encErr != nil {
		return nil, common.InternalError(fmt.Sprintf("encode envelope: %v", encErr))
	}
	return out, nil
}
