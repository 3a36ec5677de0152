package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務全名
const ServiceName = "ledger.v1.StatementService"

const (
	methodCreateStatement = "/" + ServiceName + "/CreateStatement"
	methodGetBalance      = "/" + ServiceName + "/GetBalance"
	methodGetStatement    = "/" + ServiceName + "/GetStatement"
)

// StatementServiceServer 服務端需實作的介面
// 訊息一律使用 google.protobuf.Struct，不需要額外產生程式碼
type StatementServiceServer interface {
	CreateStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// StatementServiceDesc 手寫的 ServiceDesc，等同 protoc-gen-go-grpc 的輸出
var StatementServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateStatement",
			Handler:    unaryHandler(methodCreateStatement, StatementServiceServer.CreateStatement),
		},
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(methodGetBalance, StatementServiceServer.GetBalance),
		},
		{
			MethodName: "GetStatement",
			Handler:    unaryHandler(methodGetStatement, StatementServiceServer.GetStatement),
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterStatementServiceServer 註冊服務
func RegisterStatementServiceServer(s grpc.ServiceRegistrar, srv StatementServiceServer) {
	s.RegisterService(&StatementServiceDesc, srv)
}

type unaryMethod func(StatementServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StatementServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StatementServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
