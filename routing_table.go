package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/models"
	"chatrelay/routing"
)

// RoutingTableEntry describes where one provider string is dispatched
type RoutingTableEntry struct {
	Provider          models.ProviderType `json:"provider"`
	Configured        bool                `json:"configured"`
	Healthy           bool                `json:"healthy"`
	LastHealthCheck   *time.Time          `json:"last_health_check,omitempty"`
	ErrorMessage      string              `json:"error_message,omitempty"`
	SupportsWebSearch bool                `json:"supports_web_search"`
	Models            []string            `json:"models"`
	Client            string              `json:"client,omitempty"`
}

// handleRoutingTable handles GET /routing_table: the provider mapping with
// health status and the defaults applied to incomplete metadata
func (s *server) handleRoutingTable(c *gin.Context) {
	status := make(map[models.ProviderType]models.DeploymentStatus)
	for _, d := range s.deployments.Snapshot() {
		status[d.Provider] = d.Status
	}

	entries := make([]RoutingTableEntry, 0, len(models.AllProviders))
	for _, p := range models.AllProviders {
		entry := RoutingTableEntry{
			Provider:          p,
			SupportsWebSearch: p.SupportsWebSearch(),
			Models:            []string{},
		}
		for _, m := range s.catalogue.GetByProvider(p) {
			entry.Models = append(entry.Models, m.ID)
		}
		if client, ok := s.router.Provider(p); ok {
			entry.Configured = true
			entry.Client = client.GetInfo().Name
		}
		if st, ok := status[p]; ok {
			entry.Healthy = st.Healthy
			entry.ErrorMessage = st.ErrorMessage
			if !st.LastHealthCheck.IsZero() {
				entry.LastHealthCheck = &st.LastHealthCheck
			}
		}
		entries = append(entries, entry)
	}

	healthChecking := false
	if hc := s.router.HealthChecker(); hc != nil {
		healthChecking = hc.Running()
	}

	c.JSON(http.StatusOK, gin.H{
		"providers":       entries,
		"fallback":        s.router.Fallback(),
		"defaults":        routing.Select(nil, s.router.Fallback()),
		"health_checking": healthChecking,
	})
}
