package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joshp123/godaikin/plugins/daikin"
)

const dashboardSource = "daikin"

// DashboardsMap materializes dashboard content to URL paths.
func DashboardsMap(dashboards []daikin.Dashboard) map[string][]byte {
	result := make(map[string][]byte, len(dashboards))
	for _, dash := range dashboards {
		result["/dashboards/"+dashboardSource+"/"+dash.Name+".json"] = dash.JSON
	}
	return result
}

// WriteDashboards writes dashboards to disk for Grafana provisioning. An empty
// dir is a no-op.
func WriteDashboards(dir string, dashboards []daikin.Dashboard) error {
	if dir == "" {
		return nil
	}
	target := filepath.Join(dir, dashboardSource)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create dashboard dir: %w", err)
	}
	for _, dash := range dashboards {
		path := filepath.Join(target, dash.Name+".json")
		if err := os.WriteFile(path, dash.JSON, 0o644); err != nil {
			return fmt.Errorf("write dashboard %s: %w", path, err)
		}
	}
	return nil
}

// DashboardsHandler serves dashboard JSON from an in-memory map.
func DashboardsHandler(dashboards map[string][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if data, ok := dashboards[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
		http.NotFound(w, r)
	})
}
