// Package grpc exposes the whattodo authority over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	pb "github.com/dmitrijs2005/whattodo/internal/proto"
	servermodels "github.com/dmitrijs2005/whattodo/internal/server/models"
	"github.com/dmitrijs2005/whattodo/internal/server/services"
	"google.golang.org/grpc"
)

type userSvc interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*servermodels.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifierCandidate []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	UserIDFromAccessToken(token string) (string, error)
}

type librarySvc interface {
	CreateList(ctx context.Context, ownerID string, l models.List) (*models.List, error)
	UpdateList(ctx context.Context, ownerID, id string, patch models.ListPatch) (*models.List, error)
	DeleteList(ctx context.Context, ownerID, id string) error
	GetList(ctx context.Context, callerID, id string) (*models.List, error)
	ListLists(ctx context.Context, ownerID string) ([]*models.List, error)
	CreateItem(ctx context.Context, ownerID string, i models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, ownerID, id string, patch models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, ownerID, id string) error
	ListItems(ctx context.Context, ownerID, listID string) ([]*models.Item, error)
}

type coverSvc interface {
	PresignCoverUpload(ctx context.Context, ownerID, listID, contentType string) (string, string, error)
}

// GRPCServer implements pb.AuthorityServer on top of the server services.
type GRPCServer struct {
	address string
	users   userSvc
	library librarySvc
	covers  coverSvc
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us userSvc, ls librarySvc, cs coverSvc) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		library: ls,
		covers:  cs,
	}
}

var _ pb.AuthorityServer = (*GRPCServer)(nil)

// register builds the grpc.Server with interceptors and the Authority service.
func (s *GRPCServer) register() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterAuthorityServer(srv, s)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.register()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
