// Copyright 2024-2026 Aiku AI

package flowdock

import "strings"

// flowPath builds the "org/flow" path for a flow, using the
// parameterized names of both.
func flowPath(flow *Flow) string {
	return flow.Organization.ParameterizedName + "/" + flow.ParameterizedName
}

// matchFlow reports whether a caller-supplied identifier refers to the
// given flow. An identifier may be the flow id, the parameterized name,
// the "org/flow" path, or the display name (case-insensitive).
func matchFlow(flow *Flow, identifier string) bool {
	return string(flow.ID) == identifier ||
		flow.ParameterizedName == identifier ||
		flowPath(flow) == identifier ||
		strings.EqualFold(flow.Name, identifier)
}

// findFlow returns the first flow in list order matching the
// identifier. A false result is not an error: callers fall back to
// treating the identifier as a flow id.
func findFlow(flows []Flow, identifier string) (*Flow, bool) {
	for i := range flows {
		if matchFlow(&flows[i], identifier) {
			return &flows[i], true
		}
	}
	return nil, false
}
