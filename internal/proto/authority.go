// Package proto describes the whattodo.v1.Authority gRPC service. Messages
// travel as google.protobuf.Struct values; the request and response shapes
// below are their JSON views, converted with Encode and Decode.
package proto

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "whattodo.v1.Authority"

const (
	MethodRegister           = "Register"
	MethodGetSalt            = "GetSalt"
	MethodLogin              = "Login"
	MethodRefreshToken       = "RefreshToken"
	MethodPing               = "Ping"
	MethodCreateList         = "CreateList"
	MethodUpdateList         = "UpdateList"
	MethodDeleteList         = "DeleteList"
	MethodGetList            = "GetList"
	MethodListLists          = "ListLists"
	MethodCreateItem         = "CreateItem"
	MethodUpdateItem         = "UpdateItem"
	MethodDeleteItem         = "DeleteItem"
	MethodListItems          = "ListItems"
	MethodPresignCoverUpload = "PresignCoverUpload"
)

// FullMethod returns the gRPC method path, e.g. "/whattodo.v1.Authority/Ping".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthorityServer is implemented by the remote authority.
type AuthorityServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateList(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateList(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteList(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetList(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListLists(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PresignCoverUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(AuthorityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(AuthorityServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(AuthorityServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Authority_ServiceDesc is the grpc.ServiceDesc for the Authority service.
var Authority_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthorityServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, AuthorityServer.Register),
		unary(MethodGetSalt, AuthorityServer.GetSalt),
		unary(MethodLogin, AuthorityServer.Login),
		unary(MethodRefreshToken, AuthorityServer.RefreshToken),
		unary(MethodPing, AuthorityServer.Ping),
		unary(MethodCreateList, AuthorityServer.CreateList),
		unary(MethodUpdateList, AuthorityServer.UpdateList),
		unary(MethodDeleteList, AuthorityServer.DeleteList),
		unary(MethodGetList, AuthorityServer.GetList),
		unary(MethodListLists, AuthorityServer.ListLists),
		unary(MethodCreateItem, AuthorityServer.CreateItem),
		unary(MethodUpdateItem, AuthorityServer.UpdateItem),
		unary(MethodDeleteItem, AuthorityServer.DeleteItem),
		unary(MethodListItems, AuthorityServer.ListItems),
		unary(MethodPresignCoverUpload, AuthorityServer.PresignCoverUpload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "whattodo/v1/authority.proto",
}

// RegisterAuthorityServer registers srv on s.
func RegisterAuthorityServer(s grpc.ServiceRegistrar, srv AuthorityServer) {
	s.RegisterService(&Authority_ServiceDesc, srv)
}

// AuthorityClient invokes Authority methods over a client connection.
type AuthorityClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthorityClient(cc grpc.ClientConnInterface) *AuthorityClient {
	return &AuthorityClient{cc: cc}
}

// Call encodes req, invokes method and decodes the reply into resp.
// resp may be nil when the reply carries nothing of interest.
func (c *AuthorityClient) Call(ctx context.Context, method string, req any, resp any, opts ...grpc.CallOption) error {
	in, err := Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return Decode(out, resp)
}

// Encode converts any JSON-marshalable value into a Struct. A nil value
// becomes an empty Struct.
func Encode(v any) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if v == nil {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// Decode converts a Struct back into v.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
