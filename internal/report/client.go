package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service receiving session reports
	ServiceName = "enigma.capture.v1.SessionService"
	// reportMethod is the full method name of the unary report call
	reportMethod = "/" + ServiceName + "/ReportSession"
	// apiKeyHeader carries the API key in request metadata
	apiKeyHeader = "x-api-key"
)

// ErrUnauthorized is returned when the API rejects the key; it is not retried
var ErrUnauthorized = errors.New("API key rejected by Enigma API")

// SessionReporter publishes session records to the Enigma API over gRPC
type SessionReporter struct {
	conn       *grpc.ClientConn
	apiKey     string
	retryCount int
	retryDelay time.Duration
}

// NewSessionReporter creates a reporter for serverAddr. Extra dial options
// are appended after the transport credentials.
func NewSessionReporter(serverAddr, apiKey string, insecureTransport bool, extra ...grpc.DialOption) (*SessionReporter, error) {
	var opts []grpc.DialOption
	if insecureTransport {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(serverAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}

	return &SessionReporter{
		conn:       conn,
		apiKey:     apiKey,
		retryCount: 3,
		retryDelay: 5 * time.Second,
	}, nil
}

// Report sends rec, retrying transient failures
func (u *SessionReporter) Report(ctx context.Context, rec Record) error {
	msg, err := rec.Struct()
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	var lastErr error
	for i := 0; i < u.retryCount; i++ {
		err := u.send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		lastErr = err
		if i < u.retryCount-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(u.retryDelay):
			}
		}
	}
	return fmt.Errorf("failed to report session after %d attempts: %w", u.retryCount, lastErr)
}

func (u *SessionReporter) send(ctx context.Context, msg *structpb.Struct) error {
	ctx = metadata.AppendToOutgoingContext(ctx, apiKeyHeader, u.apiKey)
	if err := u.conn.Invoke(ctx, reportMethod, msg, &emptypb.Empty{}); err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("gRPC call failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection
func (u *SessionReporter) Close() error {
	return u.conn.Close()
}
