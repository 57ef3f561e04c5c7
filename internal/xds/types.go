package xds

import (
	resource "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
)

// orderedTypeURLs is the CDS→LDS→RDS→SDS order handleVersionChange
// walks when a version change touches more than one type (EDS is not
// served: endpoints are inline in each cluster). Nothing enforces it
// across types — each type's subscription and nonce state in
// streamState is fully independent — and a stream's initial requests
// are answered per type in the order they arrive.
var orderedTypeURLs = []string{
	resource.ClusterType,
	resource.ListenerType,
	resource.RouteType,
	resource.SecretType,
}

func knownTypeURL(typeURL string) bool {
	switch typeURL {
	case resource.ClusterType, resource.ListenerType, resource.RouteType, resource.SecretType:
		return true
	default:
		return false
	}
}
