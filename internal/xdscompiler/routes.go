package xdscompiler

import (
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	matcherv3 "github.com/envoyproxy/go-control-plane/envoy/type/matcher/v3"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/flowplane/flowplane/internal/domain"
)

// buildRouteConfiguration assembles one RouteConfig's virtual hosts and
// routes into the three-level hierarchy spec.md §3 describes. The
// attachments and filters parameters are not used: filters attached at
// virtual_host or route scope are not compiled into any resource.
func buildRouteConfiguration(
	rc *domain.RouteConfig,
	vhosts []*domain.VirtualHost,
	routesByVhost map[string][]*domain.Route,
	attachments map[domain.AttachmentScope][]*domain.FilterAttachment,
	filters filterIndex,
) (*routev3.RouteConfiguration, error) {
	out := &routev3.RouteConfiguration{Name: rc.Name}

	for _, vh := range vhosts {
		builtVH := &routev3.VirtualHost{
			Name:    vh.Name,
			Domains: vh.Domains,
		}

		for _, r := range routesByVhost[vh.ID] {
			builtRoute, err := buildRoute(r)
			if err != nil {
				return nil, err
			}
			builtVH.Routes = append(builtVH.Routes, builtRoute)
		}

		out.VirtualHosts = append(out.VirtualHosts, builtVH)
	}

	return out, nil
}

// buildRoute translates one Route row's match and action into a
// go-control-plane route.Route. No HTTP filters are applied here:
// buildListener puts only the route_config-scoped filters into the HCM's
// filter list, and virtual_host- and route-scoped attachments are not
// compiled.
func buildRoute(r *domain.Route) (*routev3.Route, error) {
	match := &routev3.RouteMatch{}
	switch r.MatchType {
	case domain.MatchPrefix:
		match.PathSpecifier = &routev3.RouteMatch_Prefix{Prefix: r.MatchValue}
	case domain.MatchExact:
		match.PathSpecifier = &routev3.RouteMatch_Path{Path: r.MatchValue}
	case domain.MatchRegex:
		match.PathSpecifier = &routev3.RouteMatch_SafeRegex{
			SafeRegex: &matcherv3.RegexMatcher{Regex: r.MatchValue},
		}
	case domain.MatchPathTemplate:
		// Envoy's path-template matching lives behind a separate URI
		// template extension; a prefix match on the template's literal
		// prefix segment is the closest built-in equivalent without
		// pulling in that extension.
		match.PathSpecifier = &routev3.RouteMatch_Prefix{Prefix: r.MatchValue}
	default:
		return nil, domain.Validation("matchType", "unknown match type %q", r.MatchType)
	}

	if len(r.Methods) == 1 {
		match.Headers = append(match.Headers, &routev3.HeaderMatcher{
			Name: ":method",
			HeaderMatchSpecifier: &routev3.HeaderMatcher_StringMatch{
				StringMatch: &matcherv3.StringMatcher{
					MatchPattern: &matcherv3.StringMatcher_Exact{Exact: r.Methods[0]},
				},
			},
		})
	} else if len(r.Methods) > 1 {
		match.Headers = append(match.Headers, &routev3.HeaderMatcher{
			Name: ":method",
			HeaderMatchSpecifier: &routev3.HeaderMatcher_StringMatch{
				StringMatch: &matcherv3.StringMatcher{
					MatchPattern: &matcherv3.StringMatcher_SafeRegex{
						SafeRegex: &matcherv3.RegexMatcher{Regex: joinRegexAlternation(r.Methods)},
					},
				},
			},
		})
	}

	action := &routev3.RouteAction{
		ClusterSpecifier: &routev3.RouteAction_Cluster{Cluster: r.Action.ClusterName},
	}
	if r.Action.PrefixRewrite != "" {
		action.PrefixRewrite = r.Action.PrefixRewrite
	}
	if r.Action.HostRewrite != "" {
		action.HostRewriteSpecifier = &routev3.RouteAction_HostRewriteLiteral{HostRewriteLiteral: r.Action.HostRewrite}
	}
	if r.Action.TimeoutMS > 0 {
		action.Timeout = durationpb.New(connectTimeout(r.Action.TimeoutMS))
	}

	out := &routev3.Route{
		Match:  match,
		Action: &routev3.Route_Route{Route: action},
	}
	for k, v := range r.Action.RequestHeadersToAdd {
		out.RequestHeadersToAdd = append(out.RequestHeadersToAdd, headerValueOption(k, v))
	}
	return out, nil
}

func joinRegexAlternation(methods []string) string {
	out := ""
	for i, m := range methods {
		if i > 0 {
			out += "|"
		}
		out += m
	}
	return out
}

func headerValueOption(key, value string) *corev3.HeaderValueOption {
	return &corev3.HeaderValueOption{
		Header: &corev3.HeaderValue{Key: key, Value: value},
	}
}
