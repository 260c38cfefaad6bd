package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/rpc"
	"github.com/dmitrijs2005/gophsync/internal/server/services"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mapError converts service errors into gRPC statuses. Anything unexpected
// is logged and reported as Internal without details.
func (s *GRPCServer) mapError(ctx context.Context, err error) error {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Reason)
	case errors.Is(err, shared.ErrUnknownModel), errors.Is(err, services.ErrInvalidPageToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.RegisterResponse, error) {
	s.logger.Info(ctx, "Registration request")

	result, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username)
	return &rpc.RegisterResponse{UserID: result.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *rpc.GetSaltRequest) (*rpc.GetSaltResponse, error) {
	result, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return &rpc.GetSaltResponse{Salt: result}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	tokens, err := s.users.Login(ctx, req.Username, req.VerifierCandidate)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return &rpc.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken, AccountID: tokens.AccountID}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *rpc.RefreshTokenRequest) (*rpc.RefreshTokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	return &rpc.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) List(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	accountID, _ := AccountIDFromContext(ctx)
	if req.AccountID != "" && req.AccountID != accountID {
		return nil, status.Error(codes.PermissionDenied, "account mismatch")
	}

	p := services.ListParams{Model: req.Model, Limit: req.Limit, NextToken: req.NextToken}
	switch req.SortDirection {
	case "", "DESC":
		p.Desc = true
	case "ASC":
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown sort direction %q", req.SortDirection)
	}
	if req.UpdatedAfter != "" {
		t, err := time.Parse(services.TimeLayout, req.UpdatedAfter)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "bad updatedAfter: %v", err)
		}
		p.UpdatedAfter = t
	}

	page, err := s.items.List(ctx, accountID, p)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &rpc.ListResponse{Items: page.Items, NextToken: page.NextToken}, nil
}

func (s *GRPCServer) Create(ctx context.Context, req *rpc.MutateRequest) (*rpc.MutateResponse, error) {
	accountID, _ := AccountIDFromContext(ctx)

	item, err := s.items.Create(ctx, accountID, req.Model, req.Item)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &rpc.MutateResponse{Item: item}, nil
}

func (s *GRPCServer) Update(ctx context.Context, req *rpc.MutateRequest) (*rpc.MutateResponse, error) {
	accountID, _ := AccountIDFromContext(ctx)

	item, err := s.items.Update(ctx, accountID, req.Model, req.Item)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &rpc.MutateResponse{Item: item}, nil
}

// Subscribe streams events of one kind for the caller's account until the
// client goes away or the server stops.
func (s *GRPCServer) Subscribe(req *rpc.SubscribeRequest, stream rpc.SubscribeServer) error {
	ctx := stream.Context()
	accountID, _ := AccountIDFromContext(ctx)

	if _, err := shared.Lookup(req.Model); err != nil {
		return s.mapError(ctx, err)
	}
	switch req.Event {
	case services.EventCreate, services.EventUpdate, services.EventDelete:
	default:
		return status.Errorf(codes.InvalidArgument, "unknown event %q", req.Event)
	}

	events, cancel := s.hub.Subscribe(req.Model, accountID, req.Event)
	defer cancel()

	s.logger.Debug(ctx, "subscribed", "model", req.Model, "event", req.Event, "account", accountID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopping:
			return status.Error(codes.Unavailable, "server stopping")
		case ev, ok := <-events:
			if !ok {
				return status.Error(codes.Unavailable, "subscription closed")
			}
			if err := stream.Send(&rpc.ItemEvent{Event: ev.Kind, Item: ev.Item}); err != nil {
				return err
			}
		}
	}
}
