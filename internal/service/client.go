package service

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client wraps a gRPC connection to the agent service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to an agent service.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing against an in-process server.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	return fromStruct(out, resp)
}

// CreateAgent registers a new agent. Empty agentID lets the server pick one;
// nil cfg uses the server defaults.
func (c *Client) CreateAgent(ctx context.Context, agentID string, cfg *agent.Config) (CreateAgentResponse, error) {
	var resp CreateAgentResponse
	err := c.invoke(ctx, "CreateAgent", CreateAgentRequest{AgentID: agentID, Config: cfg}, &resp)
	return resp, err
}

// DecideExchange asks the agent whether it accepts the proposed good.
func (c *Client) DecideExchange(ctx context.Context, agentID string, proposed goods.Good) (DecideExchangeResponse, error) {
	var resp DecideExchangeResponse
	err := c.invoke(ctx, "DecideExchange", DecideExchangeRequest{AgentID: agentID, ProposedGood: proposed}, &resp)
	return resp, err
}

// RunConsumptionPhase reports the market outcome and settles the turn.
func (c *Client) RunConsumptionPhase(ctx context.Context, agentID string, tradeExecuted bool) (ConsumptionResponse, error) {
	var resp ConsumptionResponse
	err := c.invoke(ctx, "RunConsumptionPhase", ConsumptionRequest{AgentID: agentID, TradeExecuted: tradeExecuted}, &resp)
	return resp, err
}

// GetState returns the agent's holding and turn counter.
func (c *Client) GetState(ctx context.Context, agentID string) (StateResponse, error) {
	var resp StateResponse
	err := c.invoke(ctx, "GetState", AgentRequest{AgentID: agentID}, &resp)
	return resp, err
}

// Snapshot forces a gated snapshot of the agent.
func (c *Client) Snapshot(ctx context.Context, agentID string) (SnapshotResponse, error) {
	var resp SnapshotResponse
	err := c.invoke(ctx, "Snapshot", AgentRequest{AgentID: agentID}, &resp)
	return resp, err
}

// #endregion calls
