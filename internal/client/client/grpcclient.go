package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/models"
	pb "github.com/dmitrijs2005/whattodo/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Reauthenticator obtains a fresh session when the refresh token is gone,
// for example after an offline login.
type Reauthenticator func(ctx context.Context) error

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *pb.AuthorityClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	reauth       Reauthenticator

	// serializes refreshes so a rotated refresh token is never used twice
	refreshMu sync.Mutex
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.mu.Unlock()
}

// SetReauthenticator installs fn as the fallback used when a session cannot
// be refreshed.
func (s *GRPCClient) SetReauthenticator(fn Reauthenticator) {
	s.mu.Lock()
	s.reauth = fn
	s.mu.Unlock()
}

// HasSession reports whether the client holds an access token.
func (s *GRPCClient) HasSession() bool {
	access, _ := s.tokens()
	return access != ""
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	used, _ := s.tokens()
	err := invoker(withAccessToken(ctx, used), method, req, reply, cc, opts...)
	if err == nil || method == pb.FullMethod(pb.MethodRefreshToken) || method == pb.FullMethod(pb.MethodLogin) {
		return err
	}
	if status.Code(err) != codes.Unauthenticated {
		return err
	}

	if rerr := s.renewSession(ctx, used, isTokenExpired(err)); rerr != nil {
		return err
	}

	access, _ := s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

// renewSession refreshes the token pair, falling back to the reauthenticator.
// used is the access token the failed call carried; if another call already
// replaced it, nothing is done.
func (s *GRPCClient) renewSession(ctx context.Context, used string, expired bool) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	access, refresh := s.tokens()
	if access != used && access != "" {
		return nil
	}

	if expired && refresh != "" {
		var resp pb.TokenResponse
		err := s.client.Call(ctx, pb.MethodRefreshToken, pb.RefreshTokenRequest{RefreshToken: refresh}, &resp)
		if err == nil {
			s.setTokens(resp.AccessToken, resp.RefreshToken)
			return nil
		}
	}

	s.mu.RLock()
	reauth := s.reauth
	s.mu.RUnlock()
	if reauth == nil {
		return ErrUnauthorized
	}
	return reauth(ctx)
}

func NewAuthorityClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthorityClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Register(ctx context.Context, userName string, salt []byte, verifier []byte) error {
	req := pb.RegisterRequest{Username: userName, Salt: salt, Verifier: verifier}
	if err := s.client.Call(ctx, pb.MethodRegister, req, nil); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	var resp pb.GetSaltResponse
	if err := s.client.Call(ctx, pb.MethodGetSalt, pb.GetSaltRequest{Username: userName}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	return resp.Salt, nil
}

// Login starts a session and returns the user id.
func (s *GRPCClient) Login(ctx context.Context, userName string, verifier []byte) (string, error) {
	var resp pb.TokenResponse
	if err := s.client.Call(ctx, pb.MethodLogin, pb.LoginRequest{Username: userName, Verifier: verifier}, &resp); err != nil {
		return "", s.mapError(err)
	}
	s.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp.UserID, nil
}

// Logout forgets the session tokens.
func (s *GRPCClient) Logout() {
	s.setTokens("", "")
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp pb.PingResponse
	if err := s.client.Call(ctx, pb.MethodPing, pb.Empty{}, &resp); err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) CreateList(ctx context.Context, l *models.List) (*models.List, error) {
	var resp pb.ListMessage
	if err := s.client.Call(ctx, pb.MethodCreateList, pb.ListMessage{List: *l}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	return &resp.List, nil
}

func (s *GRPCClient) UpdateList(ctx context.Context, id string, p models.ListPatch) (*models.List, error) {
	var resp pb.ListMessage
	if err := s.client.Call(ctx, pb.MethodUpdateList, pb.UpdateListRequest{ID: id, Patch: p}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	return &resp.List, nil
}

func (s *GRPCClient) DeleteList(ctx context.Context, id string) error {
	if err := s.client.Call(ctx, pb.MethodDeleteList, pb.IDRequest{ID: id}, nil); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) GetList(ctx context.Context, id string) (*models.List, error) {
	var resp pb.ListMessage
	if err := s.client.Call(ctx, pb.MethodGetList, pb.IDRequest{ID: id}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	return &resp.List, nil
}

func (s *GRPCClient) ListLists(ctx context.Context) ([]*models.List, error) {
	var resp pb.ListsResponse
	if err := s.client.Call(ctx, pb.MethodListLists, pb.Empty{}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	out := make([]*models.List, 0, len(resp.Lists))
	for i := range resp.Lists {
		out = append(out, &resp.Lists[i])
	}
	return out, nil
}

func (s *GRPCClient) CreateItem(ctx context.Context, i *models.Item) (*models.Item, error) {
	var resp pb.ItemMessage
	if err := s.client.Call(ctx, pb.MethodCreateItem, pb.ItemMessage{Item: *i}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Item, nil
}

func (s *GRPCClient) UpdateItem(ctx context.Context, id string, p models.ItemPatch) (*models.Item, error) {
	var resp pb.ItemMessage
	if err := s.client.Call(ctx, pb.MethodUpdateItem, pb.UpdateItemRequest{ID: id, Patch: p}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Item, nil
}

func (s *GRPCClient) DeleteItem(ctx context.Context, id string) error {
	if err := s.client.Call(ctx, pb.MethodDeleteItem, pb.IDRequest{ID: id}, nil); err != nil {
		return s.mapError(err)
	}
	return nil
}

// ListItems returns the items of listID, or all of the user's items when
// listID is empty.
func (s *GRPCClient) ListItems(ctx context.Context, listID string) ([]*models.Item, error) {
	var resp pb.ItemsResponse
	if err := s.client.Call(ctx, pb.MethodListItems, pb.ListItemsRequest{ListID: listID}, &resp); err != nil {
		return nil, s.mapError(err)
	}
	out := make([]*models.Item, 0, len(resp.Items))
	for i := range resp.Items {
		out = append(out, &resp.Items[i])
	}
	return out, nil
}

func (s *GRPCClient) PresignCoverUpload(ctx context.Context, listID, contentType string) (string, string, error) {
	var resp pb.PresignCoverResponse
	req := pb.PresignCoverRequest{ListID: listID, ContentType: contentType}
	if err := s.client.Call(ctx, pb.MethodPresignCoverUpload, req, &resp); err != nil {
		return "", "", s.mapError(err)
	}
	return resp.Key, resp.URL, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied, codes.NotFound:
		return fmt.Errorf("%w: %s", ErrAuthorizationRejected, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrValidationRejected, st.Message())
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Internal, codes.Unknown, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

var _ Client = (*GRPCClient)(nil)
