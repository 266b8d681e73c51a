package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/models"
	pb "github.com/dmitrijs2005/whattodo/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps a service error onto the gRPC code clients classify by.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorUserExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func decode(in *structpb.Struct, v any) error {
	if err := pb.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := pb.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.RegisterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	u, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username)
	return encode(pb.RegisterResponse{UserID: u.ID})
}

func (s *GRPCServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.GetSaltRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	salt, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.GetSaltResponse{Salt: salt})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.LoginRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	tokens, err := s.users.Login(ctx, req.Username, req.Verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.TokenResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.RefreshTokenRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.TokenResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(pb.PingResponse{Status: "OK"})
}

func (s *GRPCServer) CreateList(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.ListMessage
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	l, err := s.library.CreateList(ctx, userID, req.List)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.ListMessage{List: *l})
}

func (s *GRPCServer) UpdateList(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.UpdateListRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	l, err := s.library.UpdateList(ctx, userID, req.ID, req.Patch)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.ListMessage{List: *l})
}

func (s *GRPCServer) DeleteList(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.IDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	if err := s.library.DeleteList(ctx, userID, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.Empty{})
}

func (s *GRPCServer) GetList(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.IDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	l, err := s.library.GetList(ctx, userID, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.ListMessage{List: *l})
}

func (s *GRPCServer) ListLists(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ls, err := s.library.ListLists(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp := pb.ListsResponse{Lists: make([]models.List, 0, len(ls))}
	for _, l := range ls {
		resp.Lists = append(resp.Lists, *l)
	}
	return encode(resp)
}

func (s *GRPCServer) CreateItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.ItemMessage
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	i, err := s.library.CreateItem(ctx, userID, req.Item)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.ItemMessage{Item: *i})
}

func (s *GRPCServer) UpdateItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.UpdateItemRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	i, err := s.library.UpdateItem(ctx, userID, req.ID, req.Patch)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.ItemMessage{Item: *i})
}

func (s *GRPCServer) DeleteItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.IDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	if err := s.library.DeleteItem(ctx, userID, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.Empty{})
}

func (s *GRPCServer) ListItems(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.ListItemsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	items, err := s.library.ListItems(ctx, userID, req.ListID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp := pb.ItemsResponse{Items: make([]models.Item, 0, len(items))}
	for _, i := range items {
		resp.Items = append(resp.Items, *i)
	}
	return encode(resp)
}

func (s *GRPCServer) PresignCoverUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req pb.PresignCoverRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	key, url, err := s.covers.PresignCoverUpload(ctx, userID, req.ListID, req.ContentType)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.PresignCoverResponse{Key: key, URL: url})
}
