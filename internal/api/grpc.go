package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/energyshield/internal/lut"
)

// The gRPC query service carries the same JSON documents as the HTTP API,
// wrapped in google.protobuf.Struct, so no generated stubs are needed.
const (
	queryServiceName  = "energyshield.lut.v1.Query"
	queryDeltaTMethod = "/" + queryServiceName + "/DeltaT"
	queryInfoMethod   = "/" + queryServiceName + "/Info"
)

// QueryServer is the gRPC counterpart of /api/deltat and /api/lut.
//
// DeltaT takes a struct with number fields r (required), xi, beta and
// limit and a bool field debug, and returns a lut.Result document. Info
// returns a LUTInfo document.
type QueryServer interface {
	DeltaT(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Info(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var queryServiceDesc = grpc.ServiceDesc{
	ServiceName: queryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DeltaT", Handler: deltaTHandler},
		{MethodName: "Info", Handler: infoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "energyshield/lut/v1/query.proto",
}

// RegisterQueryServer exposes s on gs.
func RegisterQueryServer(gs grpc.ServiceRegistrar, s *Server) {
	gs.RegisterService(&queryServiceDesc, grpcQuery{s})
}

// NewGRPCServer returns a gRPC server with the query service registered
// and request logging installed.
func NewGRPCServer(s *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor))
	RegisterQueryServer(gs, s)
	return gs
}

// LoggingInterceptor logs method, status code, and duration
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("[grpc] %s %s%s%s %vms",
		status.Code(err), colorCyan, info.FullMethod, colorReset,
		float64(time.Since(start).Nanoseconds())/1e6,
	)
	return resp, err
}

func deltaTHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).DeltaT(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryDeltaTMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueryServer).DeltaT(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func infoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryInfoMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueryServer).Info(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcQuery adapts Server to QueryServer.
type grpcQuery struct {
	s *Server
}

func (g grpcQuery) DeltaT(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	if _, ok := fields["r"]; !ok {
		return nil, paramStatus("r", "missing required parameter")
	}

	q := lut.Query{}
	for _, p := range []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"r", &q.R, 0},
		{"xi", &q.Xi, 0},
		{"beta", &q.Beta, 0},
		{"limit", &q.LongDeltaTLimit, g.s.LongDeltaTLimit},
	} {
		v, ok := fields[p.name]
		if !ok {
			*p.dst = p.def
			continue
		}
		n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
		if !isNumber {
			return nil, paramStatus(p.name, "must be a number")
		}
		*p.dst = n.NumberValue
	}
	if math.IsNaN(q.R) || math.IsInf(q.R, 0) {
		return nil, paramStatus("r", "r must be finite")
	}
	if v, ok := fields["debug"]; ok {
		b, isBool := v.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return nil, paramStatus("debug", "invalid boolean")
		}
		q.Debug = b.BoolValue
	}

	resolver, _ := g.s.current()
	res, err := resolver.Resolve(q)
	if err != nil {
		return nil, resolveStatus(err)
	}
	return toStruct(res)
}

func (g grpcQuery) Info(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(g.s.info())
}

func resolveStatus(err error) error {
	var oor *lut.OutOfRangeError
	switch {
	case errors.As(err, &oor):
		return paramStatus(oor.Param, err.Error())
	case errors.Is(err, lut.ErrInternalIndex):
		log.Printf("[grpc] table indexing failed: %v", err)
		return status.Error(codes.Internal, err.Error())
	default:
		log.Printf("[grpc] resolve failed: %v", err)
		return status.Error(codes.Internal, err.Error())
	}
}

// paramStatus is an InvalidArgument status naming the offending field.
func paramStatus(param, msg string) error {
	st := status.New(codes.InvalidArgument, msg)
	withField, err := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: param, Description: msg}},
	})
	if err != nil {
		return st.Err()
	}
	return withField.Err()
}

// StatusParam returns the field named by an InvalidArgument status from
// the query service, or "" when err carries none.
func StatusParam(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok && len(br.GetFieldViolations()) > 0 {
			return br.GetFieldViolations()[0].GetField()
		}
	}
	return ""
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, out any) error {
	b, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GRPCClient queries a lut-server's gRPC endpoint.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// NewGRPCClient connects to target, e.g. "localhost:8082", without
// transport security. Extra options are applied after the defaults.
func NewGRPCClient(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Close releases the connection.
func (c *GRPCClient) Close() error { return c.conn.Close() }

// Resolve asks the server to resolve q.
func (c *GRPCClient) Resolve(ctx context.Context, q lut.Query) (lut.Result, error) {
	in, err := structpb.NewStruct(map[string]any{
		"r":     q.R,
		"xi":    q.Xi,
		"beta":  q.Beta,
		"limit": q.LongDeltaTLimit,
		"debug": q.Debug,
	})
	if err != nil {
		return lut.Result{}, fmt.Errorf("failed to build request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, queryDeltaTMethod, in, out); err != nil {
		return lut.Result{}, err
	}
	var res lut.Result
	err = fromStruct(out, &res)
	return res, err
}

// Info fetches the served table's parameters and band summaries.
func (c *GRPCClient) Info(ctx context.Context) (*LUTInfo, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, queryInfoMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var info LUTInfo
	if err := fromStruct(out, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
