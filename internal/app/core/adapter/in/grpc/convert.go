package grpc

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/domain"
)

// errorDomain 放在 ErrorInfo.Domain，客戶端據此還原 domain 錯誤
const errorDomain = "ledger.v1"

// toStatus 將 domain 錯誤轉為 gRPC status
func toStatus(err error) error {
	kind := domain.KindOf(err)
	var code codes.Code
	switch kind {
	case domain.KindUserNotFound, domain.KindStatementNotFound:
		code = codes.NotFound
	case domain.KindInsufficientFunds:
		code = codes.FailedPrecondition
	case domain.KindInvalidAmount, domain.KindInvalidType:
		code = codes.InvalidArgument
	case domain.KindStore:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}

	st := status.New(code, err.Error())
	withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: kind.String(),
		Domain: errorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// fromStatus 將 gRPC 錯誤還原為 domain 錯誤 (無法辨識時原樣回傳)
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		switch info.GetReason() {
		case domain.KindUserNotFound.String():
			return domain.ErrUserNotFound
		case domain.KindStatementNotFound.String():
			return domain.ErrStatementNotFound
		case domain.KindInsufficientFunds.String():
			return domain.ErrInsufficientFunds
		case domain.KindInvalidAmount.String():
			return domain.ErrInvalidAmount
		case domain.KindInvalidType.String():
			return domain.ErrInvalidStatementType
		case domain.KindStore.String():
			return domain.NewStoreError("remote", errors.New(st.Message()))
		}
	}
	if st.Code() == codes.Unavailable {
		return domain.NewStoreError("remote", err)
	}
	return err
}

func statementToStruct(s *domain.Statement) *structpb.Struct {
	return &structpb.Struct{Fields: statementFields(s)}
}

func statementFields(s *domain.Statement) map[string]*structpb.Value {
	return map[string]*structpb.Value{
		"id":          structpb.NewStringValue(s.ID),
		"user_id":     structpb.NewStringValue(s.UserID),
		"type":        structpb.NewStringValue(s.Type.String()),
		"amount":      structpb.NewStringValue(s.Amount.StringFixed(domain.AmountScale)),
		"description": structpb.NewStringValue(s.Description),
		"created_at":  structpb.NewStringValue(s.CreatedAt.UTC().Format(time.RFC3339Nano)),
		"updated_at":  structpb.NewStringValue(s.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}
}

func balanceToStruct(b domain.Balance) *structpb.Struct {
	list := make([]*structpb.Value, 0, len(b.Statements))
	for _, s := range b.Statements {
		list = append(list, structpb.NewStructValue(statementToStruct(s)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"balance":    structpb.NewStringValue(b.Total.StringFixed(domain.AmountScale)),
		"statements": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}
}

func structToStatement(in *structpb.Struct) (*domain.Statement, error) {
	typ, err := domain.ParseStatementType(stringField(in, "type"))
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(in, "amount")
	if err != nil {
		return nil, err
	}
	s := &domain.Statement{
		ID:          stringField(in, "id"),
		UserID:      stringField(in, "user_id"),
		Type:        typ,
		Amount:      amount,
		Description: stringField(in, "description"),
	}
	if s.CreatedAt, err = timeField(in, "created_at"); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = timeField(in, "updated_at"); err != nil {
		return nil, err
	}
	return s, nil
}

func structToBalance(in *structpb.Struct) (domain.Balance, error) {
	total, err := decimalField(in, "balance")
	if err != nil {
		return domain.Balance{}, err
	}
	statements := make([]*domain.Statement, 0)
	for _, v := range in.GetFields()["statements"].GetListValue().GetValues() {
		s, err := structToStatement(v.GetStructValue())
		if err != nil {
			return domain.Balance{}, err
		}
		statements = append(statements, s)
	}
	return domain.Balance{Total: total, Statements: statements}, nil
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

// decimalField 接受字串 ("100.00") 或數字 (100)
func decimalField(in *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is required: %w", key, domain.ErrInvalidAmount)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s %q: %w", key, kind.StringValue, domain.ErrInvalidAmount)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		// float64 先轉成最短字串表示，避免 0.1 之類的二進位誤差
		d, err := decimal.NewFromString(strconv.FormatFloat(kind.NumberValue, 'f', -1, 64))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, domain.ErrInvalidAmount)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%s has unsupported type: %w", key, domain.ErrInvalidAmount)
	}
}

func timeField(in *structpb.Struct, key string) (time.Time, error) {
	raw := stringField(in, key)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
