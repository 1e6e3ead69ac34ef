package grpc

import (
	"context"
	"encoding/json"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/internal/services"
	"cashback-service/pkg/common"
)

const serviceName = "cashback.v1.CashbackService"

type TransactionReader interface {
	List(ctx context.Context, f repository.TransactionFilter) ([]models.TransactionView, error)
	Stats(ctx context.Context, userID string) (repository.TransactionStats, error)
}

type NFTReader interface {
	NFTByToken(ctx context.Context, tokenID string) (*services.NFTDetailResponse, error)
}

// CashbackServiceServer is the read-only RPC surface. Requests and responses
// are structpb.Struct so no generated code is needed.
type CashbackServiceServer interface {
	GetStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetNFT(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	Transactions TransactionReader
	NFTs         NFTReader
}

var _ CashbackServiceServer = (*Server)(nil)

func unaryHandler(call func(CashbackServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CashbackServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CashbackServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CashbackServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: unaryHandler(CashbackServiceServer.GetStats, "GetStats")},
		{MethodName: "ListTransactions", Handler: unaryHandler(CashbackServiceServer.ListTransactions, "ListTransactions")},
		{MethodName: "GetNFT", Handler: unaryHandler(CashbackServiceServer.GetNFT, "GetNFT")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cashback/v1/cashback.proto",
}

// NewServer builds a grpc.Server with the cashback and health services registered.
func NewServer(s *Server) *grpc.Server {
	gs := grpc.NewServer()
	gs.RegisterService(&ServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// StartGRPCServer initializes and starts the gRPC server
func StartGRPCServer(port string, transactions TransactionReader, nfts NFTReader) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logrus.Fatalf("failed to listen: %v", err)
	}
	s := NewServer(&Server{Transactions: transactions, NFTs: nfts})

	logrus.Infof("gRPC server listening at %v", lis.Addr())
	if err := s.Serve(lis); err != nil {
		logrus.Fatalf("failed to serve: %v", err)
	}
}

func (s *Server) GetStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "user_id")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	stats, err := s.Transactions.Stats(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(stats)
}

func (s *Server) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "user_id")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	limit := int(numberField(req, "limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.Transactions.List(ctx, repository.TransactionFilter{
		UserID:  userID,
		Status:  stringField(req, "status"),
		Network: stringField(req, "network"),
		Limit:   limit,
		Offset:  int(numberField(req, "offset")),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{"transactions": rows})
}

func (s *Server) GetNFT(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tokenID := stringField(req, "token_id")
	if tokenID == "" {
		return nil, status.Error(codes.InvalidArgument, "token_id is required")
	}
	nft, err := s.NFTs.NFTByToken(ctx, tokenID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(nft)
}

func stringField(s *structpb.Struct, key string) string {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func numberField(s *structpb.Struct, key string) float64 {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetNumberValue()
	}
	return 0
}

// toStruct goes through JSON so the RPC payloads match the REST bodies.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	appErr := common.AsAppError(err)
	switch appErr.Kind {
	case common.KindInvalidInput:
		return status.Error(codes.InvalidArgument, appErr.Message)
	case common.KindNotFound:
		return status.Error(codes.NotFound, appErr.Message)
	case common.KindIntegration:
		return status.Error(codes.Unavailable, appErr.Message)
	default:
		logrus.WithError(err).Error("gRPC request failed")
		return status.Error(codes.Internal, appErr.Message)
	}
}
