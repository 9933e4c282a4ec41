package grpcserver

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
)

// Client calls labelreg.v1.Registry. Every call is sent with the bearer
// token it was created with.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(WithBearer(ctx, c.token), fullMethod(method), in, out)
}

func (c *Client) SetLabel(ctx context.Context, label []byte) error {
	return c.invoke(ctx, "SetLabel", wrapperspb.Bytes(label), &emptypb.Empty{})
}

func (c *Client) ClearLabel(ctx context.Context) (ledger.Balance, error) {
	out := &wrapperspb.UInt64Value{}
	if err := c.invoke(ctx, "ClearLabel", &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return ledger.Balance(out.GetValue()), nil
}

func (c *Client) ForceSetLabel(ctx context.Context, target ledger.AccountID, label []byte) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"target":    structpb.NewStringValue(string(target)),
		"label_b64": structpb.NewStringValue(base64.StdEncoding.EncodeToString(label)),
	}}
	return c.invoke(ctx, "ForceSetLabel", in, &emptypb.Empty{})
}

func (c *Client) ForceClearLabel(ctx context.Context, target ledger.AccountID) (ledger.Balance, error) {
	out := &wrapperspb.UInt64Value{}
	if err := c.invoke(ctx, "ForceClearLabel", wrapperspb.String(string(target)), out); err != nil {
		return 0, err
	}
	return ledger.Balance(out.GetValue()), nil
}

func (c *Client) Endow(ctx context.Context, account ledger.AccountID, amount ledger.Balance) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"account": structpb.NewStringValue(string(account)),
		"amount":  amountValue(amount),
	}}
	return c.invoke(ctx, "Endow", in, &emptypb.Empty{})
}

func (c *Client) Lookup(ctx context.Context, account ledger.AccountID) (registry.Entry, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "Lookup", wrapperspb.String(string(account)), out); err != nil {
		return registry.Entry{}, err
	}
	encoded, err := stringField(out, "label_b64")
	if err != nil {
		return registry.Entry{}, err
	}
	label, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return registry.Entry{}, err
	}
	deposit, err := amountField(out, "deposit")
	if err != nil {
		return registry.Entry{}, err
	}
	return registry.Entry{Label: label, Deposit: deposit}, nil
}

func (c *Client) Balance(ctx context.Context, account ledger.AccountID) (ledger.Account, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "Balance", wrapperspb.String(string(account)), out); err != nil {
		return ledger.Account{}, err
	}
	free, err := amountField(out, "free")
	if err != nil {
		return ledger.Account{}, err
	}
	reserved, err := amountField(out, "reserved")
	if err != nil {
		return ledger.Account{}, err
	}
	return ledger.Account{Free: free, Reserved: reserved}, nil
}
