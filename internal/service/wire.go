package service

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "mkw.v1.AgentService"

// #region service-desc
// AgentServiceServer is the server API for the agent decision service.
type AgentServiceServer interface {
	CreateAgent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DecideExchange(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunConsumptionPhase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the agent service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAgent", Handler: unaryHandler("CreateAgent", AgentServiceServer.CreateAgent)},
		{MethodName: "DecideExchange", Handler: unaryHandler("DecideExchange", AgentServiceServer.DecideExchange)},
		{MethodName: "RunConsumptionPhase", Handler: unaryHandler("RunConsumptionPhase", AgentServiceServer.RunConsumptionPhase)},
		{MethodName: "GetState", Handler: unaryHandler("GetState", AgentServiceServer.GetState)},
		{MethodName: "Snapshot", Handler: unaryHandler("Snapshot", AgentServiceServer.Snapshot)},
	},
	Streams: []grpc.StreamDesc{},
}

type methodFunc func(AgentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryHandler(method string, call methodFunc) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AgentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AgentServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc

// #region codec
// toStruct renders a typed message through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return s, nil
}

// fromStruct decodes a Struct into a typed message. Numbers cross the wire as
// doubles, so integer fields must stay within 2^53.
func fromStruct(s *structpb.Struct, v interface{}) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// #endregion codec
