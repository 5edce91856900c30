package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/models"
)

// ModelResponse for the OpenAI-style listing
type ModelResponse struct {
	ID           string                   `json:"id"`
	Object       string                   `json:"object"`
	Name         string                   `json:"name"`
	Capabilities models.ModelCapabilities `json:"capabilities"`
	Created      int64                    `json:"created"`
	OwnedBy      string                   `json:"owned_by"`
	Available    bool                     `json:"available"`
}

// DeploymentResponse for API responses
type DeploymentResponse struct {
	ID       string                  `json:"id"`
	Provider string                  `json:"provider"`
	BaseURL  string                  `json:"base_url,omitempty"`
	Timeout  string                  `json:"timeout"`
	Status   models.DeploymentStatus `json:"status"`
}

// handleCatalogue handles GET /api/models, the list the UI's dropdown shows
func (s *server) handleCatalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":   s.catalogue.List(),
		"defaults": gin.H{"modelId": models.DefaultModelID, "provider": models.DefaultProvider},
	})
}

// handleListModels handles GET /v1/models
func (s *server) handleListModels(c *gin.Context) {
	allModels := s.catalogue.List()
	created := s.started.Unix()

	data := make([]ModelResponse, 0, len(allModels))
	for _, model := range allModels {
		_, available := s.router.Provider(model.Provider)
		data = append(data, ModelResponse{
			ID:           model.ID,
			Object:       "model",
			Name:         model.Name,
			Capabilities: model.Capabilities,
			Created:      created,
			OwnedBy:      string(model.Provider),
			Available:    available,
		})
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

// handleGetModel handles GET /v1/models/:id
func (s *server) handleGetModel(c *gin.Context) {
	model, ok := s.catalogue.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		return
	}
	_, available := s.router.Provider(model.Provider)
	c.JSON(http.StatusOK, ModelResponse{
		ID:           model.ID,
		Object:       "model",
		Name:         model.Name,
		Capabilities: model.Capabilities,
		Created:      s.started.Unix(),
		OwnedBy:      string(model.Provider),
		Available:    available,
	})
}

// handleListDeployments handles GET /v1/deployments
func (s *server) handleListDeployments(c *gin.Context) {
	snapshot := s.deployments.Snapshot()
	data := make([]DeploymentResponse, 0, len(snapshot))
	for _, d := range snapshot {
		data = append(data, deploymentResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

func deploymentResponse(d models.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:       d.ID,
		Provider: string(d.Provider),
		BaseURL:  d.Endpoint.BaseURL,
		Timeout:  d.Endpoint.Timeout.Round(time.Second).String(),
		Status:   d.Status,
	}
}

// handleGetDeployment handles GET /v1/deployments/:id
func (s *server) handleGetDeployment(c *gin.Context) {
	id := c.Param("id")
	for _, d := range s.deployments.Snapshot() {
		if d.ID == id {
			c.JSON(http.StatusOK, deploymentResponse(d))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Deployment not found"})
}
