package server

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

func startGRPC(t *testing.T, proc *stubProcessor, reports *memReports) (*LabReportClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLoggingInterceptor(quietLogger())))
	RegisterLabReportServer(srv, NewLabReportService(proc, reports, 1<<10, quietLogger()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(LabReportServiceName, healthpb.HealthCheckResponse_SERVING)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewLabReportClient(conn), conn
}

func TestGRPC_ExtractText(t *testing.T) {
	client, _ := startGRPC(t, newStubProcessor(), newMemReports())

	out, err := client.ExtractText(context.Background(), wrapperspb.String("RBC: 5.1 million/mcL\nCholesterol 240 mg/dL"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	var env processor.Envelope
	if err := FromStruct(out, &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success || len(env.Data) != 2 {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Data[0].Range != "4.5 - 6.0 million/mcL" || env.Data[1].Status != "Needs Attention" {
		t.Errorf("records = %+v", env.Data)
	}
	if _, err := uuid.Parse(env.ReportID); err != nil {
		t.Errorf("report_id = %q", env.ReportID)
	}
}

func TestGRPC_ExtractDocument(t *testing.T) {
	proc := newStubProcessor()
	client, _ := startGRPC(t, proc, newMemReports())

	req, _ := structpb.NewStruct(map[string]any{
		"filename":       "cbc.jpg",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("Platelets: 100000 platelets/mcL")),
	})
	out, err := client.ExtractDocument(context.Background(), req)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	var env processor.Envelope
	if err := FromStruct(out, &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success || len(env.Data) != 1 || env.Data[0].Parameter != "Platelet" {
		t.Errorf("envelope = %+v", env)
	}
	if proc.lastName != "cbc.jpg" {
		t.Errorf("processor saw %q", proc.lastName)
	}

	unsupported, _ := structpb.NewStruct(map[string]any{"filename": "x.gif", "content_base64": "eA=="})
	out, err = client.ExtractDocument(context.Background(), unsupported)
	if err != nil {
		t.Fatalf("unsupported should be in-band: %v", err)
	}
	if got := out.GetFields()["error"].GetStringValue(); got != "Unsupported file type." {
		t.Errorf("error = %q", got)
	}
	if _, ok := out.GetFields()["data"]; ok {
		t.Error("failed envelope must not carry data")
	}
}

func TestGRPC_ExtractDocument_InvalidArgument(t *testing.T) {
	client, _ := startGRPC(t, newStubProcessor(), newMemReports())

	cases := map[string]map[string]any{
		"missing filename": {"content_base64": "eA=="},
		"bad base64":       {"filename": "a.pdf", "content_base64": "%%%"},
		"too large":        {"filename": "a.pdf", "content_base64": base64.StdEncoding.EncodeToString(make([]byte, 4<<10))},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			req, _ := structpb.NewStruct(fields)
			_, err := client.ExtractDocument(context.Background(), req)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
			}
		})
	}
}

func TestGRPC_Reports(t *testing.T) {
	rep := sampleReport()
	client, _ := startGRPC(t, newStubProcessor(), newMemReports(rep))
	ctx := context.Background()

	out, err := client.GetReport(ctx, wrapperspb.String(rep.ID.String()))
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	var view reportView
	if err := FromStruct(out, &view); err != nil {
		t.Fatal(err)
	}
	if view.SourceName != "lipid.pdf" || len(view.Records) != 2 || view.Status != "PARSED" {
		t.Errorf("view = %+v", view)
	}

	if _, err := client.GetReport(ctx, wrapperspb.String(uuid.NewString())); status.Code(err) != codes.NotFound {
		t.Errorf("missing report code = %v", status.Code(err))
	}
	if _, err := client.GetReport(ctx, wrapperspb.String("nope")); status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad id code = %v", status.Code(err))
	}

	list, err := client.ListReports(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if n := len(list.GetFields()["reports"].GetListValue().GetValues()); n != 1 {
		t.Errorf("reports = %d, want 1", n)
	}
}

func TestGRPC_Health(t *testing.T) {
	_, conn := startGRPC(t, newStubProcessor(), newMemReports())
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: LabReportServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}
