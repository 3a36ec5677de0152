package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// Client StatementService 的型別化客戶端，錯誤會還原為 domain 錯誤
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// CreateStatement 建立存款 / 提款
func (c *Client) CreateStatement(ctx context.Context, userID string, typ domain.StatementType, amount decimal.Decimal, description string) (*domain.Statement, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"user_id":     structpb.NewStringValue(userID),
		"type":        structpb.NewStringValue(typ.String()),
		"amount":      structpb.NewStringValue(amount.String()),
		"description": structpb.NewStringValue(description),
	}}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodCreateStatement, req, resp); err != nil {
		return nil, fromStatus(err)
	}
	return structToStatement(resp)
}

// GetBalance 取得餘額與紀錄
func (c *Client) GetBalance(ctx context.Context, userID string) (domain.Balance, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"user_id": structpb.NewStringValue(userID),
	}}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetBalance, req, resp); err != nil {
		return domain.Balance{}, fromStatus(err)
	}
	return structToBalance(resp)
}

// GetStatement 取得單筆紀錄
func (c *Client) GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"user_id":      structpb.NewStringValue(userID),
		"statement_id": structpb.NewStringValue(statementID),
	}}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetStatement, req, resp); err != nil {
		return nil, fromStatus(err)
	}
	return structToStatement(resp)
}
