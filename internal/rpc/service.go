// Package rpc serves the bridge over gRPC. The schema is parsed from the
// embedded bridge.proto at startup; messages are dynamic.
package rpc

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jhump/protoreflect/desc/protoparse"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/logging"
)

//go:embed bridge.proto
var bridgeProto string

const (
	protoFileName = "godaikin/bridge/v1/bridge.proto"
	ServiceName   = "godaikin.bridge.v1.BridgeService"
)

// Bridge is what the service needs from the controller.
type Bridge interface {
	Status() bridge.Status
	Views() []bridge.UnitView
	View(uniqueID string) (bridge.UnitView, bool)
	SendCommand(ctx context.Context, unitID, key, value string) error
}

var (
	schemaOnce sync.Once
	schemaFile protoreflect.FileDescriptor
	schemaErr  error
)

// Schema parses bridge.proto once and registers it globally so server
// reflection can describe the service.
func Schema() (protoreflect.FileDescriptor, error) {
	schemaOnce.Do(func() {
		p := protoparse.Parser{
			Accessor: func(filename string) (io.ReadCloser, error) {
				if filename == protoFileName {
					return io.NopCloser(strings.NewReader(bridgeProto)), nil
				}
				return nil, fmt.Errorf("unknown import: %s", filename)
			},
		}
		fds, err := p.ParseFiles(protoFileName)
		if err != nil {
			schemaErr = fmt.Errorf("parse %s: %w", protoFileName, err)
			return
		}
		fd := fds[0].UnwrapFile()
		if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			schemaErr = fmt.Errorf("register %s: %w", protoFileName, err)
			return
		}
		schemaFile = fd
	})
	return schemaFile, schemaErr
}

type service struct {
	bridge Bridge
	logger *zap.Logger
}

// Register adds BridgeService to the server.
func Register(server grpc.ServiceRegistrar, b Bridge, logger *zap.Logger) error {
	fd, err := Schema()
	if err != nil {
		return err
	}
	sd := fd.Services().ByName("BridgeService")
	if sd == nil {
		return errors.New("schema: missing BridgeService")
	}
	s := &service{bridge: b, logger: logging.OrNop(logger).Named("rpc")}

	handlers := map[protoreflect.Name]func(context.Context, *dynamicpb.Message) (any, error){
		"ListUnits":       s.listUnits,
		"GetUnit":         s.getUnit,
		"GetBridgeStatus": s.getBridgeStatus,
		"SendCommand":     s.sendCommand,
	}
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*Bridge)(nil),
		Metadata:    protoFileName,
	}
	methods := sd.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		fn, ok := handlers[md.Name()]
		if !ok {
			return fmt.Errorf("schema: no handler for %s", md.FullName())
		}
		desc.Methods = append(desc.Methods, s.unary(md, fn))
	}
	server.RegisterService(&desc, b)
	return nil
}

func (s *service) unary(md protoreflect.MethodDescriptor, fn func(context.Context, *dynamicpb.Message) (any, error)) grpc.MethodDesc {
	fullMethod := fmt.Sprintf("/%s/%s", ServiceName, md.Name())
	call := func(ctx context.Context, req any) (any, error) {
		out, err := fn(ctx, req.(*dynamicpb.Message))
		if err != nil {
			return nil, err
		}
		return reply(md.Output(), out)
	}
	return grpc.MethodDesc{
		MethodName: string(md.Name()),
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := dynamicpb.NewMessage(md.Input())
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, call)
		},
	}
}

func (s *service) listUnits(context.Context, *dynamicpb.Message) (any, error) {
	return map[string]any{"units": s.bridge.Views()}, nil
}

func (s *service) getUnit(_ context.Context, req *dynamicpb.Message) (any, error) {
	id := stringField(req, "unit_id")
	view, ok := s.bridge.View(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unit %q not found", id)
	}
	return view, nil
}

func (s *service) getBridgeStatus(context.Context, *dynamicpb.Message) (any, error) {
	st := s.bridge.Status()
	var lastPoll int64
	if !st.LastPoll.IsZero() {
		lastPoll = st.LastPoll.Unix()
	}
	return map[string]any{
		"state":          st.State.String(),
		"units":          st.Units,
		"last_poll_unix": lastPoll,
	}, nil
}

func (s *service) sendCommand(ctx context.Context, req *dynamicpb.Message) (any, error) {
	id := stringField(req, "unit_id")
	key := stringField(req, "key")
	if _, ok := s.bridge.View(id); !ok {
		return nil, status.Errorf(codes.NotFound, "unit %q not found", id)
	}
	if err := s.bridge.SendCommand(ctx, id, key, stringField(req, "value")); err != nil {
		s.logger.Warn("command failed", zap.String("unit", id), zap.String("key", key), zap.Error(err))
		return nil, statusError(err)
	}
	return map[string]any{"accepted": true}, nil
}

func statusError(err error) error {
	var decodeErr *bridge.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return status.Error(codes.InvalidArgument, decodeErr.Reason)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// reply converts a JSON-tagged value into the output message. The JSON names
// match the proto field names.
func reply(md protoreflect.MessageDescriptor, v any) (*dynamicpb.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s: %v", md.FullName(), err)
	}
	msg := dynamicpb.NewMessage(md)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s: %v", md.FullName(), err)
	}
	return msg, nil
}

func stringField(msg *dynamicpb.Message, name string) string {
	fd := msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return ""
	}
	return msg.Get(fd).String()
}
