package backend

import (
	"regexp"
	"strings"
)

var routeParamRegexp = regexp.MustCompile(`\{([^}]+)\}`)

// MatchRoute matches an incoming method and path against the stored
// endpoints and extracts the path parameter bindings. Candidates are
// tried in storage order; the first match wins. There is no specificity
// ordering beyond that.
func MatchRoute(method, path string, endpoints []Endpoint) (Endpoint, map[string]string, bool) {
	for _, e := range endpoints {
		if e.Method != method {
			continue
		}
		params, ok := matchPattern(e.Route, path)
		if ok {
			return e, params, true
		}
	}
	return Endpoint{}, nil, false
}

// matchPattern tests a single {name}-segmented pattern against a path.
// Each {name} becomes a ([^/]+) capture group; the pattern is anchored at
// both ends. On match the parameter names are zipped against the capture
// groups in left-to-right order.
func matchPattern(pattern, path string) (map[string]string, bool) {
	literals := routeParamRegexp.Split(pattern, -1)
	for i := range literals {
		literals[i] = regexp.QuoteMeta(literals[i])
	}
	expr := "^" + strings.Join(literals, "([^/]+)") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, false
	}
	match := re.FindStringSubmatch(path)
	if match == nil {
		return nil, false
	}

	// match[0] is the full string, captures start at 1
	params := map[string]string{}
	names := routeParamRegexp.FindAllStringSubmatch(pattern, -1)
	for i, name := range names {
		if i+1 < len(match) {
			params[name[1]] = match[i+1]
		}
	}
	return params, true
}
