package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
)

// GrpcServer 將 CoreUseCase 暴露為 ledger.v1.StatementService
// user_id 由上游 (API Gateway / 驗證服務) 驗證後帶入
type GrpcServer struct {
	core   *usecase.CoreUseCase
	logger *zap.Logger
}

func NewGrpcServer(core *usecase.CoreUseCase, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		core:   core,
		logger: logger,
	}
}

// CreateStatement 請求欄位: user_id, type ("deposit"|"withdraw"), amount, description
func (s *GrpcServer) CreateStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// 1. 轉換交易類型
	typ, err := domain.ParseStatementType(stringField(req, "type"))
	if err != nil {
		return nil, toStatus(err)
	}

	// 2. 金額解析
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, toStatus(err)
	}

	// 3. 執行交易
	created, err := s.core.CreateStatement(ctx,
		stringField(req, "user_id"),
		typ,
		amount,
		stringField(req, "description"),
	)
	if err != nil {
		return nil, toStatus(err)
	}
	return statementToStruct(created), nil
}

// GetBalance 請求欄位: user_id
func (s *GrpcServer) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	balance, err := s.core.GetBalance(ctx, stringField(req, "user_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return balanceToStruct(balance), nil
}

// GetStatement 請求欄位: user_id, statement_id
func (s *GrpcServer) GetStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	statement, err := s.core.GetStatement(ctx, stringField(req, "user_id"), stringField(req, "statement_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return statementToStruct(statement), nil
}

// LoggingInterceptor 記錄每個請求的方法、耗時與結果代碼
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Stringer("code", code),
		}
		switch code {
		case codes.OK:
			logger.Debug("grpc request", fields...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			logger.Error("grpc request failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("grpc request rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

var _ StatementServiceServer = (*GrpcServer)(nil)
