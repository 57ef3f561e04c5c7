package materializer

import (
	"encoding/json"
	"strings"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/spec"

	"github.com/flowplane/flowplane/internal/domain"
)

const (
	extensionDomain  = "x-flowplane-domain"
	extensionFilters = "x-flowplane-filters"
)

// ImportOpenAPI adapts an OpenAPI document into an ApiDefinition
// (spec.md §4.3 "OpenAPI import"): every (path, method) pair becomes a
// route, path segments containing `{param}` become path_template
// matches, parameter-less paths use prefix matches, and every produced
// route carries a `:method` header matcher.
func ImportOpenAPI(raw []byte, team, clusterName string) (*domain.ApiDefinition, error) {
	doc, err := loads.Analyzed(raw, "")
	if err != nil {
		return nil, domain.Validation("document", "invalid OpenAPI document: %v", err)
	}
	swagger := doc.Spec()

	apiDomain := stringExtension(swagger.Extensions, extensionDomain)
	if apiDomain == "" {
		return nil, domain.Validation(extensionDomain, "OpenAPI document must set the %s extension", extensionDomain)
	}

	def := &domain.ApiDefinition{
		Team:   team,
		Domain: apiDomain,
	}

	for path, item := range swagger.Paths.Paths {
		matchType, matchValue := classifyPath(path)
		for method, op := range operationsOf(item) {
			if op == nil {
				continue
			}
			decl := domain.RouteDeclaration{
				Match:       matchType,
				MatchValue:  matchValue,
				Methods:     domain.HTTPMethodSet{strings.ToUpper(method)},
				ClusterName: clusterName,
			}
			if filters := stringExtension(op.Extensions, extensionFilters); filters != "" {
				decl.Filters = domain.RouteFilterOverrides{CORS: json.RawMessage(filters)}
			}
			def.Routes = append(def.Routes, decl)
		}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// classifyPath returns the match type and value for one OpenAPI path
// template: a path containing a `{param}` segment becomes a
// path_template match on the raw template string; a literal path
// becomes a prefix match (spec.md §4.3).
func classifyPath(path string) (domain.MatchType, string) {
	if strings.Contains(path, "{") {
		return domain.MatchPathTemplate, path
	}
	return domain.MatchPrefix, path
}

func operationsOf(item spec.PathItem) map[string]*spec.Operation {
	return map[string]*spec.Operation{
		"GET":     item.Get,
		"PUT":     item.Put,
		"POST":    item.Post,
		"DELETE":  item.Delete,
		"OPTIONS": item.Options,
		"HEAD":    item.Head,
		"PATCH":   item.Patch,
	}
}

func stringExtension(ext spec.Extensions, key string) string {
	v, ok := ext[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
