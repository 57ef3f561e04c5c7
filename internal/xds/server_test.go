package xds

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	discoverygrpc "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	resource "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/metadata"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/hub"
	"github.com/flowplane/flowplane/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStream is a minimal, single-goroutine implementation of
// discoverygrpc.AggregatedDiscoveryService_StreamAggregatedResourcesServer
// for exercising handleRequest/handleVersionChange/pushType directly,
// without a real gRPC connection.
type fakeStream struct {
	ctx  context.Context
	sent []*discoverygrpc.DiscoveryResponse
}

func newFakeStream() *fakeStream { return &fakeStream{ctx: context.Background()} }

func (f *fakeStream) Send(resp *discoverygrpc.DiscoveryResponse) error {
	f.sent = append(f.sent, resp)
	return nil
}

func (f *fakeStream) Recv() (*discoverygrpc.DiscoveryRequest, error) { return nil, nil }

func (f *fakeStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(metadata.MD)       {}
func (f *fakeStream) Context() context.Context     { return f.ctx }
func (f *fakeStream) SendMsg(m any) error           { return nil }
func (f *fakeStream) RecvMsg(m any) error           { return nil }

func (f *fakeStream) lastForType(typeURL string) *discoverygrpc.DiscoveryResponse {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].TypeUrl == typeURL {
			return f.sent[i]
		}
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, *storage.Repositories) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite://")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	repos := storage.NewRepositories(db)
	h := hub.New()
	return NewServer(repos, h, discardLogger(), TLSConfig{}), repos
}

func seedCluster(t *testing.T, repos *storage.Repositories, name string) {
	t.Helper()
	cfg, _ := json.Marshal(domain.ClusterConfig{Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}}})
	c := &domain.Cluster{Name: name, ServiceName: name, Team: "platform", Configuration: cfg}
	if err := repos.Clusters.Create(context.Background(), c); err != nil {
		t.Fatalf("seedCluster: %v", err)
	}
}

func TestHandleRequestInitialPushesAndSetsNonce(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	req := &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}
	if err := s.handleRequest(stream, st, req); err != nil {
		t.Fatalf("handleRequest: %v", err)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("expected one push on initial request, got %d", len(stream.sent))
	}
	ts := st.forType(resource.ClusterType)
	if ts.pendingNonce == "" {
		t.Fatal("a push must leave a pendingNonce set")
	}
	if ts.pendingNonce != stream.sent[0].Nonce {
		t.Fatalf("pendingNonce %q must match the sent response's nonce %q", ts.pendingNonce, stream.sent[0].Nonce)
	}
}

func TestHandleRequestAckClearsNonceAndSuppressesRepeat(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	if err := s.handleRequest(stream, st, &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}); err != nil {
		t.Fatalf("initial handleRequest: %v", err)
	}
	ts := st.forType(resource.ClusterType)
	nonce := ts.pendingNonce

	ack := &discoverygrpc.DiscoveryRequest{
		TypeUrl:       resource.ClusterType,
		ResponseNonce: nonce,
		VersionInfo:   stream.sent[0].VersionInfo,
	}
	if err := s.handleRequest(stream, st, ack); err != nil {
		t.Fatalf("ack handleRequest: %v", err)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("a plain ACK against an unchanged snapshot must not trigger another push, got %d sends", len(stream.sent))
	}
	if ts.pendingNonce != "" {
		t.Fatal("ACK must clear pendingNonce")
	}
}

// TestHandleRequestAckTimeHashRecheck exercises fix #3: a plain ACK
// whose hash is now stale (because a write landed between the push and
// the ACK, but the hub event was swallowed by another path) must
// trigger an immediate push rather than waiting indefinitely.
func TestHandleRequestAckTimeHashRecheck(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	if err := s.handleRequest(stream, st, &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}); err != nil {
		t.Fatalf("initial handleRequest: %v", err)
	}
	ts := st.forType(resource.ClusterType)
	nonce := ts.pendingNonce

	// A second cluster lands after the push but before the ACK arrives.
	seedCluster(t, repos, "billing")

	ack := &discoverygrpc.DiscoveryRequest{
		TypeUrl:       resource.ClusterType,
		ResponseNonce: nonce,
		VersionInfo:   stream.sent[0].VersionInfo,
	}
	if err := s.handleRequest(stream, st, ack); err != nil {
		t.Fatalf("ack handleRequest: %v", err)
	}
	if len(stream.sent) != 2 {
		t.Fatalf("a stale ACK must trigger a recheck push once content changed, got %d sends", len(stream.sent))
	}
	if len(stream.sent[1].Resources) != 2 {
		t.Fatalf("the recheck push must carry both clusters, got %d resources", len(stream.sent[1].Resources))
	}
}

func TestHandleRequestNacked(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	if err := s.handleRequest(stream, st, &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}); err != nil {
		t.Fatalf("initial handleRequest: %v", err)
	}
	ts := st.forType(resource.ClusterType)
	nonce := ts.pendingNonce

	nack := &discoverygrpc.DiscoveryRequest{
		TypeUrl:       resource.ClusterType,
		ResponseNonce: nonce,
		ErrorDetail:   &rpcstatus.Status{Message: "bad cluster config"},
	}
	if err := s.handleRequest(stream, st, nack); err != nil {
		t.Fatalf("nack handleRequest: %v", err)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("a NACK must not trigger an immediate re-push; Envoy retries on its own, got %d sends", len(stream.sent))
	}
	if ts.pendingNonce != "" {
		t.Fatal("NACK must still clear pendingNonce so a later request isn't treated as stale")
	}
}

func TestHandleRequestStaleNonceDiscarded(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	if err := s.handleRequest(stream, st, &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}); err != nil {
		t.Fatalf("initial handleRequest: %v", err)
	}

	stale := &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType, ResponseNonce: "not-the-real-nonce"}
	if err := s.handleRequest(stream, st, stale); err != nil {
		t.Fatalf("handleRequest with a stale nonce: %v", err)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("a stale-nonce ack/nack must be silently discarded, got %d sends", len(stream.sent))
	}
}

func TestHandleVersionChangeSkipsTypeWithOutstandingNonce(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	if err := s.handleRequest(stream, st, &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}); err != nil {
		t.Fatalf("initial handleRequest: %v", err)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("expected one initial push, got %d", len(stream.sent))
	}

	seedCluster(t, repos, "billing")
	if err := s.handleVersionChange(context.Background(), stream, st, 2); err != nil {
		t.Fatalf("handleVersionChange: %v", err)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("handleVersionChange must skip a type whose earlier push is still unacknowledged, got %d sends", len(stream.sent))
	}
}

func TestHandleVersionChangePushesOnceAckedAndChanged(t *testing.T) {
	s, repos := newTestServer(t)
	seedCluster(t, repos, "checkout")
	stream := newFakeStream()
	st := newStreamState()

	if err := s.handleRequest(stream, st, &discoverygrpc.DiscoveryRequest{TypeUrl: resource.ClusterType}); err != nil {
		t.Fatalf("initial handleRequest: %v", err)
	}
	ts := st.forType(resource.ClusterType)
	ack := &discoverygrpc.DiscoveryRequest{
		TypeUrl: resource.ClusterType, ResponseNonce: ts.pendingNonce, VersionInfo: stream.sent[0].VersionInfo,
	}
	if err := s.handleRequest(stream, st, ack); err != nil {
		t.Fatalf("ack handleRequest: %v", err)
	}

	seedCluster(t, repos, "billing")
	if err := s.handleVersionChange(context.Background(), stream, st, 2); err != nil {
		t.Fatalf("handleVersionChange: %v", err)
	}
	if len(stream.sent) != 2 {
		t.Fatalf("handleVersionChange must push a type once it's both acked and changed, got %d sends", len(stream.sent))
	}

	// Per-stream version monotonicity: the newest push's version_info
	// must be strictly greater than the version this stream already saw.
	if stream.sent[1].VersionInfo == stream.sent[0].VersionInfo {
		t.Fatal("a subsequent push must carry a newer version_info than the previous one")
	}
}
