package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/rpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// startServer serves s on a loopback port and returns a connected client.
func startServer(t *testing.T, s *GRPCServer) rpc.SyncServiceClient {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return rpc.NewSyncServiceClient(conn)
}

// login registers a user and returns a context carrying its access token.
func login(t *testing.T, c rpc.SyncServiceClient, name string) (context.Context, string) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Register(ctx, &rpc.RegisterRequest{Username: name, Salt: []byte("salt"), Verifier: []byte("v")})
	require.NoError(t, err)

	resp, err := c.Login(ctx, &rpc.LoginRequest{Username: name, VerifierCandidate: []byte("v")})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccountID)

	md := metadata.Pairs(common.AccessTokenHeaderName, resp.AccessToken)
	return metadata.NewOutgoingContext(ctx, md), resp.AccountID
}

func TestServer_PingIsPublic(t *testing.T) {
	c := startServer(t, newTestServer(t))

	resp, err := c.Ping(context.Background(), &rpc.PingRequest{})
	require.NoError(t, err)
	require.Equal(t, "OK", resp.Status)
}

func TestServer_AuthFlow(t *testing.T) {
	c := startServer(t, newTestServer(t))
	ctx := context.Background()

	_, err := c.Register(ctx, &rpc.RegisterRequest{Username: "bob", Salt: []byte("s"), Verifier: []byte("v")})
	require.NoError(t, err)

	_, err = c.Register(ctx, &rpc.RegisterRequest{Username: "bob", Salt: []byte("s"), Verifier: []byte("v")})
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	salt, err := c.GetSalt(ctx, &rpc.GetSaltRequest{Username: "bob"})
	require.NoError(t, err)
	require.Equal(t, []byte("s"), salt.Salt)

	_, err = c.Login(ctx, &rpc.LoginRequest{Username: "bob", VerifierCandidate: []byte("wrong")})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	tokens, err := c.Login(ctx, &rpc.LoginRequest{Username: "bob", VerifierCandidate: []byte("v")})
	require.NoError(t, err)

	refreshed, err := c.RefreshToken(ctx, &rpc.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	// rotated tokens are single use
	_, err = c.RefreshToken(ctx, &rpc.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_ItemsRequireToken(t *testing.T) {
	c := startServer(t, newTestServer(t))

	_, err := c.List(context.Background(), &rpc.ListRequest{Model: "todo"})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_CreateUpdateList(t *testing.T) {
	c := startServer(t, newTestServer(t))
	ctx, account := login(t, c, "alice")

	created, err := c.Create(ctx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "t1", "title": "milk"}})
	require.NoError(t, err)
	require.Equal(t, account, created.Item["accountId"])

	_, err = c.Create(ctx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "t2"}})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	updated, err := c.Update(ctx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "t1", "completed": true}})
	require.NoError(t, err)
	require.Equal(t, true, updated.Item["completed"])
	require.Equal(t, "milk", updated.Item["title"])

	_, err = c.Update(ctx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "missing", "title": "x"}})
	require.Equal(t, codes.NotFound, status.Code(err))

	list, err := c.List(ctx, &rpc.ListRequest{Model: "todo", AccountID: account})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Empty(t, list.NextToken)

	list, err = c.List(ctx, &rpc.ListRequest{Model: "todo", UpdatedAfter: updated.Item["updatedAt"].(string)})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

func TestServer_ListRejectsBadInput(t *testing.T) {
	c := startServer(t, newTestServer(t))
	ctx, _ := login(t, c, "carol")

	_, err := c.List(ctx, &rpc.ListRequest{Model: "todo", AccountID: "someone-else"})
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = c.List(ctx, &rpc.ListRequest{Model: "todo", SortDirection: "SIDEWAYS"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.List(ctx, &rpc.ListRequest{Model: "todo", UpdatedAfter: "yesterday"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.List(ctx, &rpc.ListRequest{Model: "nope"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.List(ctx, &rpc.ListRequest{Model: "todo", NextToken: "!!"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_AccountsAreIsolated(t *testing.T) {
	c := startServer(t, newTestServer(t))
	aliceCtx, _ := login(t, c, "alice")
	bobCtx, _ := login(t, c, "bob")

	_, err := c.Create(aliceCtx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "shared", "title": "a"}})
	require.NoError(t, err)

	_, err = c.Create(bobCtx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "shared", "title": "b"}})
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.Update(bobCtx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "shared", "title": "b"}})
	require.Equal(t, codes.NotFound, status.Code(err))

	list, err := c.List(bobCtx, &rpc.ListRequest{Model: "todo"})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

func TestServer_Subscribe(t *testing.T) {
	s := newTestServer(t)
	c := startServer(t, s)
	ctx, _ := login(t, c, "dave")

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.Subscribe(subCtx, &rpc.SubscribeRequest{Model: "todo", Event: "create"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Create(ctx, &rpc.MutateRequest{Model: "todo", Item: map[string]any{"id": "t1", "title": "milk"}})
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "create", ev.Event)
	require.Equal(t, "t1", ev.Item["id"])

	cancel()
	require.Eventually(t, func() bool { return s.hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SubscribeRejectsUnknownEvent(t *testing.T) {
	c := startServer(t, newTestServer(t))
	ctx, _ := login(t, c, "erin")

	stream, err := c.Subscribe(ctx, &rpc.SubscribeRequest{Model: "todo", Event: "explode"})
	require.NoError(t, err)

	_, err = stream.Recv()
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
