package grpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/models"
	pb "github.com/dmitrijs2005/whattodo/internal/proto"
	"github.com/dmitrijs2005/whattodo/internal/server/auth"
	servermodels "github.com/dmitrijs2005/whattodo/internal/server/models"
	"github.com/dmitrijs2005/whattodo/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	listID = "aaaaaaaa-0000-4000-8000-000000000001"
	itemID = "cccccccc-0000-4000-8000-000000000003"
)

// dial serves s over an in-memory listener and returns a client for it.
func dial(t *testing.T, s *GRPCServer) *pb.AuthorityClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return pb.NewAuthorityClient(conn)
}

func authed(t *testing.T, userID string) context.Context {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
}

func TestPing_OK(t *testing.T) {
	c := dial(t, newServer(&fakeUser{}, newFakeLibrary(), &fakeCovers{}))

	var resp pb.PingResponse
	if err := c.Call(context.Background(), pb.MethodPing, pb.Empty{}, &resp); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
	if resp.Status != "OK" {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
}

func TestRegister(t *testing.T) {
	u := &fakeUser{regResp: &servermodels.User{ID: "42"}}
	c := dial(t, newServer(u, newFakeLibrary(), &fakeCovers{}))

	var resp pb.RegisterResponse
	err := c.Call(context.Background(), pb.MethodRegister, pb.RegisterRequest{Username: "u", Salt: []byte("s"), Verifier: []byte("v")}, &resp)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if resp.UserID != "42" {
		t.Fatalf("unexpected user id: %q", resp.UserID)
	}

	u.regErr = fmt.Errorf("error creating user: %w", common.ErrorUserExists)
	err = c.Call(context.Background(), pb.MethodRegister, pb.RegisterRequest{Username: "u", Salt: []byte("s"), Verifier: []byte("v")}, nil)
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("want AlreadyExists, got %v", status.Code(err))
	}
}

func TestGetSalt(t *testing.T) {
	c := dial(t, newServer(&fakeUser{saltResp: []byte("SALT123")}, newFakeLibrary(), &fakeCovers{}))

	var resp pb.GetSaltResponse
	if err := c.Call(context.Background(), pb.MethodGetSalt, pb.GetSaltRequest{Username: "u"}, &resp); err != nil {
		t.Fatalf("GetSalt error: %v", err)
	}
	if !bytes.Equal(resp.Salt, []byte("SALT123")) {
		t.Fatalf("unexpected salt: %q", resp.Salt)
	}
}

func TestLogin(t *testing.T) {
	u := &fakeUser{loginResp: &services.TokenPair{UserID: "u1", AccessToken: "A", RefreshToken: "R"}}
	c := dial(t, newServer(u, newFakeLibrary(), &fakeCovers{}))

	var resp pb.TokenResponse
	if err := c.Call(context.Background(), pb.MethodLogin, pb.LoginRequest{Username: "u", Verifier: []byte("v")}, &resp); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.UserID != "u1" || resp.AccessToken != "A" || resp.RefreshToken != "R" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}

	u.loginErr = common.ErrorUnauthorized
	err := c.Call(context.Background(), pb.MethodLogin, pb.LoginRequest{Username: "u", Verifier: []byte("x")}, &resp)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}
}

func TestRefreshToken(t *testing.T) {
	u := &fakeUser{refreshResp: &services.TokenPair{UserID: "u1", AccessToken: "a", RefreshToken: "r"}}
	c := dial(t, newServer(u, newFakeLibrary(), &fakeCovers{}))

	var resp pb.TokenResponse
	if err := c.Call(context.Background(), pb.MethodRefreshToken, pb.RefreshTokenRequest{RefreshToken: "r0"}, &resp); err != nil {
		t.Fatalf("RefreshToken error: %v", err)
	}
	if resp.AccessToken != "a" || resp.RefreshToken != "r" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}

	u.refreshErr = common.ErrRefreshTokenExpired
	err := c.Call(context.Background(), pb.MethodRefreshToken, pb.RefreshTokenRequest{RefreshToken: "r0"}, &resp)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}

	u.refreshErr = errors.New("oops")
	err = c.Call(context.Background(), pb.MethodRefreshToken, pb.RefreshTokenRequest{RefreshToken: "r0"}, &resp)
	if status.Code(err) != codes.Internal {
		t.Fatalf("want Internal, got %v", status.Code(err))
	}
	if status.Convert(err).Message() == "oops" {
		t.Fatalf("internal error details must not leak")
	}
}

func TestListRoundTrip(t *testing.T) {
	lib := newFakeLibrary()
	c := dial(t, newServer(&fakeUser{}, lib, &fakeCovers{}))
	ctx := authed(t, "u1")

	var created pb.ListMessage
	in := models.List{ID: listID, Title: "Summer reads", Visibility: models.VisibilityPublic, Tags: []string{"books"}}
	if err := c.Call(ctx, pb.MethodCreateList, pb.ListMessage{List: in}, &created); err != nil {
		t.Fatalf("CreateList error: %v", err)
	}
	if lib.lastOwner != "u1" {
		t.Fatalf("owner not taken from token: %q", lib.lastOwner)
	}
	if created.List.OwnerID != "u1" || created.List.Slug == nil || created.List.Tags[0] != "books" {
		t.Fatalf("unexpected list: %+v", created.List)
	}

	title := "Winter reads"
	var updated pb.ListMessage
	if err := c.Call(ctx, pb.MethodUpdateList, pb.UpdateListRequest{ID: listID, Patch: models.ListPatch{Title: &title}}, &updated); err != nil {
		t.Fatalf("UpdateList error: %v", err)
	}
	if updated.List.Title != "Winter reads" || lib.lastPatch.Visibility != nil {
		t.Fatalf("patch not carried: %+v %+v", updated.List, lib.lastPatch)
	}

	var got pb.ListMessage
	if err := c.Call(ctx, pb.MethodGetList, pb.IDRequest{ID: listID}, &got); err != nil {
		t.Fatalf("GetList error: %v", err)
	}
	if !got.List.UpdatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp lost in transit: %v", got.List.UpdatedAt)
	}

	var all pb.ListsResponse
	if err := c.Call(ctx, pb.MethodListLists, pb.Empty{}, &all); err != nil {
		t.Fatalf("ListLists error: %v", err)
	}
	if len(all.Lists) != 1 {
		t.Fatalf("want 1 list, got %d", len(all.Lists))
	}

	if err := c.Call(ctx, pb.MethodDeleteList, pb.IDRequest{ID: listID}, nil); err != nil {
		t.Fatalf("DeleteList error: %v", err)
	}
	err := c.Call(ctx, pb.MethodGetList, pb.IDRequest{ID: listID}, &got)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", status.Code(err))
	}
}

func TestItemRoundTrip(t *testing.T) {
	lib := newFakeLibrary()
	c := dial(t, newServer(&fakeUser{}, lib, &fakeCovers{}))
	ctx := authed(t, "u1")

	in := models.Item{
		ID: itemID, ListID: listID, Type: models.ItemBook, Title: "Dune",
		Status: models.StatusSaved, Tags: []string{}, Metadata: map[string]any{"year": float64(1965)},
	}
	var created pb.ItemMessage
	if err := c.Call(ctx, pb.MethodCreateItem, pb.ItemMessage{Item: in}, &created); err != nil {
		t.Fatalf("CreateItem error: %v", err)
	}
	if created.Item.Metadata["year"] != float64(1965) {
		t.Fatalf("metadata lost: %+v", created.Item.Metadata)
	}

	done := models.StatusDone
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	var updated pb.ItemMessage
	if err := c.Call(ctx, pb.MethodUpdateItem, pb.UpdateItemRequest{ID: itemID, Patch: models.ItemPatch{Status: &done, CompletedAt: &at}}, &updated); err != nil {
		t.Fatalf("UpdateItem error: %v", err)
	}
	if updated.Item.Status != models.StatusDone || updated.Item.CompletedAt == nil || !updated.Item.CompletedAt.Equal(at) {
		t.Fatalf("unexpected item: %+v", updated.Item)
	}

	var items pb.ItemsResponse
	if err := c.Call(ctx, pb.MethodListItems, pb.ListItemsRequest{ListID: listID}, &items); err != nil {
		t.Fatalf("ListItems error: %v", err)
	}
	if len(items.Items) != 1 {
		t.Fatalf("want 1 item, got %d", len(items.Items))
	}

	if err := c.Call(ctx, pb.MethodDeleteItem, pb.IDRequest{ID: itemID}, nil); err != nil {
		t.Fatalf("DeleteItem error: %v", err)
	}
	if len(lib.items) != 0 {
		t.Fatalf("item not deleted")
	}
}

func TestPresignCoverUpload(t *testing.T) {
	covers := &fakeCovers{key: "covers/u1/x.png", url: "http://s3/put"}
	c := dial(t, newServer(&fakeUser{}, newFakeLibrary(), covers))

	var resp pb.PresignCoverResponse
	err := c.Call(authed(t, "u1"), pb.MethodPresignCoverUpload, pb.PresignCoverRequest{ListID: listID, ContentType: "image/png"}, &resp)
	if err != nil {
		t.Fatalf("PresignCoverUpload error: %v", err)
	}
	if resp.Key != "covers/u1/x.png" || resp.URL != "http://s3/put" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if covers.gotOwner != "u1" || covers.gotList != listID || covers.gotType != "image/png" {
		t.Fatalf("unexpected call: %+v", covers)
	}
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("list x: %w", common.ErrorNotFound), codes.NotFound},
		{fmt.Errorf("list x: %w", common.ErrorForbidden), codes.PermissionDenied},
		{fmt.Errorf("%w: title", common.ErrorValidation), codes.InvalidArgument},
		{common.ErrorUserExists, codes.AlreadyExists},
		{common.ErrInvalidToken, codes.Unauthenticated},
		{errors.New("db down"), codes.Internal},
	}

	lib := newFakeLibrary()
	c := dial(t, newServer(&fakeUser{}, lib, &fakeCovers{}))
	ctx := authed(t, "u1")

	for _, tc := range cases {
		t.Run(tc.want.String(), func(t *testing.T) {
			lib.err = tc.err
			err := c.Call(ctx, pb.MethodListLists, pb.Empty{}, nil)
			if status.Code(err) != tc.want {
				t.Fatalf("want %v, got %v (err=%v)", tc.want, status.Code(err), err)
			}
		})
	}
}

func TestLibraryMethodsRequireToken(t *testing.T) {
	c := dial(t, newServer(&fakeUser{}, newFakeLibrary(), &fakeCovers{}))

	for _, m := range []string{
		pb.MethodCreateList, pb.MethodUpdateList, pb.MethodDeleteList, pb.MethodGetList, pb.MethodListLists,
		pb.MethodCreateItem, pb.MethodUpdateItem, pb.MethodDeleteItem, pb.MethodListItems, pb.MethodPresignCoverUpload,
	} {
		err := c.Call(context.Background(), m, pb.Empty{}, nil)
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("%s: want Unauthenticated, got %v", m, status.Code(err))
		}
	}
}

func TestHandlerWithoutUserInContext(t *testing.T) {
	s := newServer(&fakeUser{}, newFakeLibrary(), &fakeCovers{})
	_, err := s.ListLists(context.Background(), nil)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}
}
