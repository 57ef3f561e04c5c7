package xdscompiler

import (
	"testing"

	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	durationpb "google.golang.org/protobuf/types/known/durationpb"
)

func sampleCluster(name string) *clusterv3.Cluster {
	return &clusterv3.Cluster{
		Name:           name,
		ConnectTimeout: durationpb.New(0),
	}
}

func TestHashResourceIsDeterministic(t *testing.T) {
	a, err := HashResource(sampleCluster("checkout"))
	if err != nil {
		t.Fatalf("HashResource: %v", err)
	}
	b, err := HashResource(sampleCluster("checkout"))
	if err != nil {
		t.Fatalf("HashResource: %v", err)
	}
	if a != b {
		t.Fatalf("identical resources must hash identically: %q vs %q", a, b)
	}
}

func TestHashResourceIsSensitiveToContent(t *testing.T) {
	a, err := HashResource(sampleCluster("checkout"))
	if err != nil {
		t.Fatalf("HashResource: %v", err)
	}
	b, err := HashResource(sampleCluster("billing"))
	if err != nil {
		t.Fatalf("HashResource: %v", err)
	}
	if a == b {
		t.Fatal("different resources must not hash identically")
	}
}

func TestHashResourceSetIsOrderIndependent(t *testing.T) {
	set1 := []*clusterv3.Cluster{sampleCluster("checkout"), sampleCluster("billing"), sampleCluster("inventory")}
	set2 := []*clusterv3.Cluster{sampleCluster("inventory"), sampleCluster("checkout"), sampleCluster("billing")}

	h1, err := HashResourceSet(set1)
	if err != nil {
		t.Fatalf("HashResourceSet: %v", err)
	}
	h2, err := HashResourceSet(set2)
	if err != nil {
		t.Fatalf("HashResourceSet: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("resource set hash must be order-independent: %q vs %q", h1, h2)
	}
}

func TestHashResourceSetIsSensitiveToMembership(t *testing.T) {
	set1 := []*clusterv3.Cluster{sampleCluster("checkout"), sampleCluster("billing")}
	set2 := []*clusterv3.Cluster{sampleCluster("checkout"), sampleCluster("inventory")}

	h1, err := HashResourceSet(set1)
	if err != nil {
		t.Fatalf("HashResourceSet: %v", err)
	}
	h2, err := HashResourceSet(set2)
	if err != nil {
		t.Fatalf("HashResourceSet: %v", err)
	}
	if h1 == h2 {
		t.Fatal("resource sets with different membership must not hash identically")
	}
}

func TestHashResourceSetEmpty(t *testing.T) {
	h1, err := HashResourceSet([]*clusterv3.Cluster{})
	if err != nil {
		t.Fatalf("HashResourceSet: %v", err)
	}
	h2, err := HashResourceSet([]*clusterv3.Cluster(nil))
	if err != nil {
		t.Fatalf("HashResourceSet: %v", err)
	}
	if h1 != h2 {
		t.Fatal("an empty and a nil resource slice must hash identically")
	}
}
