package proto

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type echoServer struct {
	UnimplementedAuthorityServer
}

func (echoServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return Encode(PingResponse{Status: "OK"})
}

func (echoServer) CreateList(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListMessage
	if err := Decode(in, &req); err != nil {
		return nil, err
	}
	req.List.UpdatedAt = req.List.CreatedAt.Add(time.Second)
	return Encode(req)
}

func dial(t *testing.T, srv AuthorityServer, opts ...grpc.ServerOption) *AuthorityClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(opts...)
	RegisterAuthorityServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewAuthorityClient(conn)
}

func TestAuthorityClient_CallRoundTrip(t *testing.T) {
	c := dial(t, echoServer{})
	ctx := context.Background()

	var pong PingResponse
	require.NoError(t, c.Call(ctx, MethodPing, Empty{}, &pong))
	assert.Equal(t, "OK", pong.Status)

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := ListMessage{List: models.List{ID: "l1", Title: "Books", Visibility: models.VisibilityPrivate, Tags: []string{"sf"}, CreatedAt: created}}
	var out ListMessage
	require.NoError(t, c.Call(ctx, MethodCreateList, in, &out))
	assert.Equal(t, "Books", out.List.Title)
	assert.Equal(t, []string{"sf"}, out.List.Tags)
	assert.True(t, out.List.UpdatedAt.Equal(created.Add(time.Second)))
}

func TestAuthorityClient_UnimplementedMethod(t *testing.T) {
	c := dial(t, echoServer{})

	err := c.Call(context.Background(), MethodDeleteItem, IDRequest{ID: "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var seen string
	icpt := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		return handler(ctx, req)
	}
	c := dial(t, echoServer{}, grpc.UnaryInterceptor(icpt))

	require.NoError(t, c.Call(context.Background(), MethodPing, nil, nil))
	assert.Equal(t, "/whattodo.v1.Authority/Ping", seen)
}

func TestEncode_Bytes(t *testing.T) {
	s, err := Encode(GetSaltResponse{Salt: []byte{1, 2, 3}})
	require.NoError(t, err)

	var back GetSaltResponse
	require.NoError(t, Decode(s, &back))
	assert.Equal(t, []byte{1, 2, 3}, back.Salt)
}
