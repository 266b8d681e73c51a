package proto

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnimplementedAuthorityServer answers every method with codes.Unimplemented.
// Embed it to implement a subset of the service.
type UnimplementedAuthorityServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedAuthorityServer) Register(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRegister)
}
func (UnimplementedAuthorityServer) GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetSalt)
}
func (UnimplementedAuthorityServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedAuthorityServer) RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRefreshToken)
}
func (UnimplementedAuthorityServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodPing)
}
func (UnimplementedAuthorityServer) CreateList(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCreateList)
}
func (UnimplementedAuthorityServer) UpdateList(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpdateList)
}
func (UnimplementedAuthorityServer) DeleteList(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDeleteList)
}
func (UnimplementedAuthorityServer) GetList(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetList)
}
func (UnimplementedAuthorityServer) ListLists(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodListLists)
}
func (UnimplementedAuthorityServer) CreateItem(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCreateItem)
}
func (UnimplementedAuthorityServer) UpdateItem(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpdateItem)
}
func (UnimplementedAuthorityServer) DeleteItem(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDeleteItem)
}
func (UnimplementedAuthorityServer) ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodListItems)
}
func (UnimplementedAuthorityServer) PresignCoverUpload(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodPresignCoverUpload)
}
