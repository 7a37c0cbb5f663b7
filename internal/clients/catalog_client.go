// Package clients holds gRPC clients for the catalog lookup service.
package clients

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	catalogrpc "yamdb/internal/grpc"
)

const defaultCallTimeout = 3 * time.Second

// CatalogClient calls the catalog lookup service. It also satisfies
// review.TitleChecker.
type CatalogClient struct {
	conn        *grpc.ClientConn
	logger      *slog.Logger
	callTimeout time.Duration
}

// NewCatalogClient connects to the service at addr. The connection is
// established lazily on the first call.
func NewCatalogClient(addr string, logger *slog.Logger, opts ...grpc.DialOption) (*CatalogClient, error) {
	logger.Info("Creating catalog gRPC client", slog.String("address", addr))

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		logger.Error("Failed to create catalog gRPC client", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to catalog service at %s: %w", addr, err)
	}
	return &CatalogClient{conn: conn, logger: logger, callTimeout: defaultCallTimeout}, nil
}

func (c *CatalogClient) invoke(ctx context.Context, method string, in, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.conn.Invoke(callCtx, method, in, out); err != nil {
		st, _ := status.FromError(err)
		c.logger.ErrorContext(ctx, "Catalog gRPC call failed",
			slog.String("method", method),
			slog.String("code", st.Code().String()),
			slog.String("message", st.Message()))
		return fmt.Errorf("grpc %s failed: %w", method, err)
	}
	return nil
}

// TitleExists asks the service whether a title exists.
func (c *CatalogClient) TitleExists(ctx context.Context, id int64) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, catalogrpc.MethodCheckTitleExists, wrapperspb.Int64(id), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// GetTitle returns the title as a JSON-like map, including its rating.
func (c *CatalogClient) GetTitle(ctx context.Context, id int64) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, catalogrpc.MethodGetTitle, wrapperspb.Int64(id), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// GetUser returns the public profile of a user.
func (c *CatalogClient) GetUser(ctx context.Context, username string) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, catalogrpc.MethodGetUser, wrapperspb.String(username), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Healthy reports whether the service answers its health check as serving.
func (c *CatalogClient) Healthy(ctx context.Context) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: catalogrpc.ServiceName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// IsNotFound reports whether err carries the gRPC NotFound code.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (c *CatalogClient) Close() error {
	if c.conn != nil {
		c.logger.Info("Closing gRPC connection to catalog service")
		return c.conn.Close()
	}
	return nil
}
