// Package grpc serves catalog lookups to internal clients over gRPC. The
// service uses the protobuf well-known wrapper and struct messages, so it is
// registered through a hand-written service descriptor.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"yamdb/internal/domain"
	"yamdb/internal/store"
)

const ServiceName = "yamdb.catalog.v1.CatalogService"

// Full method names, used by clients with ClientConn.Invoke.
const (
	MethodGetTitle         = "/" + ServiceName + "/GetTitle"
	MethodCheckTitleExists = "/" + ServiceName + "/CheckTitleExists"
	MethodGetUser          = "/" + ServiceName + "/GetUser"
)

// TitleSource resolves titles together with their computed rating.
type TitleSource interface {
	GetTitle(ctx context.Context, id int64) (*domain.Title, error)
	TitleExists(ctx context.Context, id int64) (bool, error)
}

// CatalogServer is the server API of the catalog lookup service.
type CatalogServer interface {
	GetTitle(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	CheckTitleExists(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

// Server implements CatalogServer.
type Server struct {
	titles TitleSource
	users  store.UserStore
	logger *slog.Logger
}

var _ CatalogServer = (*Server)(nil)

func NewServer(titles TitleSource, users store.UserStore, logger *slog.Logger) *Server {
	return &Server{titles: titles, users: users, logger: logger}
}

func titleToStruct(t *domain.Title) (*structpb.Struct, error) {
	genres := make([]any, 0, len(t.Genres))
	for _, g := range t.Genres {
		genres = append(genres, map[string]any{"name": g.Name, "slug": g.Slug})
	}
	fields := map[string]any{
		"id":          t.ID,
		"name":        t.Name,
		"year":        t.Year,
		"description": t.Description,
		"genre":       genres,
		"category":    nil,
		"rating":      nil,
	}
	if t.Category != nil {
		fields["category"] = map[string]any{"name": t.Category.Name, "slug": t.Category.Slug}
	}
	if t.Rating != nil {
		fields["rating"] = *t.Rating
	}
	return structpb.NewStruct(fields)
}

func userToStruct(u *domain.User) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"bio":        u.Bio,
		"role":       string(u.Role),
	})
}

func (s *Server) GetTitle(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	s.logger.InfoContext(ctx, "gRPC GetTitle called", slog.Int64("title_id", req.GetValue()))

	if req.GetValue() <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "title_id must be positive")
	}
	t, err := s.titles.GetTitle(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, store.ErrTitleNotFound) {
			s.logger.WarnContext(ctx, "Title not found for GetTitle", slog.Int64("title_id", req.GetValue()))
			return nil, status.Errorf(codes.NotFound, "title %d not found", req.GetValue())
		}
		s.logger.ErrorContext(ctx, "Failed to get title", slog.Int64("title_id", req.GetValue()), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to retrieve title: %v", err)
	}
	out, err := titleToStruct(t)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode title: %v", err)
	}
	return out, nil
}

func (s *Server) CheckTitleExists(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	s.logger.InfoContext(ctx, "gRPC CheckTitleExists called", slog.Int64("title_id", req.GetValue()))

	if req.GetValue() <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "title_id must be positive")
	}
	ok, err := s.titles.TitleExists(ctx, req.GetValue())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to check title existence", slog.Int64("title_id", req.GetValue()), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to check title existence: %v", err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	s.logger.InfoContext(ctx, "gRPC GetUser called", slog.String("username", req.GetValue()))

	if req.GetValue() == "" {
		return nil, status.Errorf(codes.InvalidArgument, "username cannot be empty")
	}
	u, err := s.users.GetUserByUsername(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, status.Errorf(codes.NotFound, "user %s not found", req.GetValue())
		}
		s.logger.ErrorContext(ctx, "Failed to get user", slog.String("username", req.GetValue()), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to retrieve user: %v", err)
	}
	out, err := userToStruct(u)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode user: %v", err)
	}
	return out, nil
}

// --- service registration ---

func unaryHandler[Req any, Resp any](method string, call func(CatalogServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the catalog lookup service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTitle", Handler: unaryHandler(MethodGetTitle, CatalogServer.GetTitle)},
		{MethodName: "CheckTitleExists", Handler: unaryHandler(MethodCheckTitleExists, CatalogServer.CheckTitleExists)},
		{MethodName: "GetUser", Handler: unaryHandler(MethodGetUser, CatalogServer.GetUser)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "yamdb/catalog/v1/catalog.proto",
}

// NewGRPCServer builds a grpc.Server with the catalog and health services
// registered and request logging installed.
func NewGRPCServer(srv CatalogServer, logger *slog.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	s.RegisterService(&ServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.DebugContext(ctx, "gRPC request handled",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)))
		return resp, err
	}
}
