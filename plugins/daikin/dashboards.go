package daikin

import _ "embed"

//go:embed dashboard.json
var dashboardJSON []byte

// Dashboard is a Grafana dashboard shipped with the binary.
type Dashboard struct {
	Name string
	JSON []byte
}

func Dashboards() []Dashboard {
	return []Dashboard{{Name: "daikin-overview", JSON: dashboardJSON}}
}
