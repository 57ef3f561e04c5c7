package materializer

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flowplane/flowplane/internal/domain"
)

// BootstrapFormat selects the rendering of GenerateBootstrap's output.
type BootstrapFormat string

const (
	BootstrapYAML BootstrapFormat = "yaml"
	BootstrapJSON BootstrapFormat = "json"
)

// bootstrapNode mirrors the subset of an Envoy bootstrap document this
// control plane needs to hand back to a newly provisioned data-plane
// instance: node metadata plus the ADS cluster pointing back here
// (spec.md §4.3's bootstrap_uri output).
type bootstrapNode struct {
	Node struct {
		ID       string            `yaml:"id" json:"id"`
		Cluster  string            `yaml:"cluster" json:"cluster"`
		Metadata map[string]string `yaml:"metadata" json:"metadata"`
	} `yaml:"node" json:"node"`
	DynamicResources struct {
		AdsConfig struct {
			ApiType             string `yaml:"api_type" json:"api_type"`
			TransportApiVersion string `yaml:"transport_api_version" json:"transport_api_version"`
			GrpcServices        []struct {
				EnvoyGrpc struct {
					ClusterName string `yaml:"cluster_name" json:"cluster_name"`
				} `yaml:"envoy_grpc" json:"envoy_grpc"`
			} `yaml:"grpc_services" json:"grpc_services"`
		} `yaml:"ads_config" json:"ads_config"`
	} `yaml:"dynamic_resources" json:"dynamic_resources"`
	StaticResources struct {
		Clusters []map[string]any `yaml:"clusters" json:"clusters"`
	} `yaml:"static_resources" json:"static_resources"`
}

// NodeID renders the `team=<team>/<uuid>` node id spec.md §4.3's
// bootstrap output uses to identify a data-plane instance.
func NodeID(team string) string {
	return fmt.Sprintf("team=%s/%s", team, domain.NewID())
}

// GenerateBootstrap renders the Envoy bootstrap document for a
// data-plane instance belonging to team, naming this control plane's
// own gRPC cluster as its ADS source (spec.md §4.3 Output). nodeID is
// typically NodeID(team), but api-definition bootstraps reuse the
// definition's own id so a re-fetch returns the same node identity.
func GenerateBootstrap(nodeID, team string, includeDefault bool, controlPlaneClusterName, adsHost string, adsPort uint32, format BootstrapFormat) ([]byte, error) {
	doc := bootstrapNode{}
	doc.Node.ID = nodeID
	doc.Node.Cluster = team
	doc.Node.Metadata = map[string]string{"team": team, "include_default": fmt.Sprintf("%t", includeDefault)}
	doc.DynamicResources.AdsConfig.ApiType = "GRPC"
	doc.DynamicResources.AdsConfig.TransportApiVersion = "V3"
	doc.DynamicResources.AdsConfig.GrpcServices = []struct {
		EnvoyGrpc struct {
			ClusterName string `yaml:"cluster_name" json:"cluster_name"`
		} `yaml:"envoy_grpc" json:"envoy_grpc"`
	}{{}}
	doc.DynamicResources.AdsConfig.GrpcServices[0].EnvoyGrpc.ClusterName = controlPlaneClusterName
	doc.StaticResources.Clusters = []map[string]any{{
		"name":            controlPlaneClusterName,
		"type":            "STRICT_DNS",
		"typed_extension_protocol_options": map[string]any{
			"envoy.extensions.upstreams.http.v3.HttpProtocolOptions": map[string]any{
				"explicit_http_config": map[string]any{"http2_protocol_options": map[string]any{}},
			},
		},
		"load_assignment": map[string]any{
			"cluster_name": controlPlaneClusterName,
			"endpoints": []map[string]any{{
				"lb_endpoints": []map[string]any{{
					"endpoint": map[string]any{
						"address": map[string]any{
							"socket_address": map[string]any{"address": adsHost, "port_value": adsPort},
						},
					},
				}},
			}},
		},
	}}

	switch format {
	case BootstrapJSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return yaml.Marshal(doc)
	}
}
