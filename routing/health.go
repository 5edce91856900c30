package routing

import (
	"context"
	"log"
	"sync"
	"time"

	"chatrelay/models"
)

// HealthChecker monitors deployment health
type HealthChecker struct {
	router   *Router
	interval time.Duration
	timeout  time.Duration

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(router *Router, interval, timeout time.Duration) *HealthChecker {
	hc := &HealthChecker{
		router:   router,
		interval: interval,
		timeout:  timeout,
	}
	router.mu.Lock()
	router.healthChecker = hc
	router.mu.Unlock()
	return hc
}

// HealthChecker returns the checker attached to the router, if any
func (r *Router) HealthChecker() *HealthChecker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthChecker
}

// Start begins health checking
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.stopChan = make(chan struct{})
	hc.done = make(chan struct{})
	hc.mu.Unlock()

	go hc.run()
}

// Stop stops health checking and waits for the loop to exit
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	stop, done := hc.stopChan, hc.done
	hc.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the check loop is active
func (hc *HealthChecker) Running() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.running
}

// run is the main health check loop
func (hc *HealthChecker) run() {
	hc.mu.RLock()
	stop, done := hc.stopChan, hc.done
	hc.mu.RUnlock()
	defer close(done)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	// Initial health check
	hc.CheckAll()

	for {
		select {
		case <-ticker.C:
			hc.CheckAll()
		case <-stop:
			return
		}
	}
}

// CheckAll checks all deployments concurrently
func (hc *HealthChecker) CheckAll() {
	deployments := hc.router.deployments.Snapshot()

	var wg sync.WaitGroup
	for _, deployment := range deployments {
		wg.Add(1)
		go func(d models.Deployment) {
			defer wg.Done()
			hc.checkDeployment(&d)
		}(deployment)
	}
	wg.Wait()
}

// checkDeployment checks a single deployment
func (hc *HealthChecker) checkDeployment(deployment *models.Deployment) {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	provider, exists := hc.router.Provider(deployment.Provider)
	if !exists {
		hc.updateDeploymentHealth(deployment.Provider, false, "provider not configured", 0)
		return
	}

	start := time.Now()
	err := provider.HealthCheck(ctx, deployment)
	responseTime := time.Since(start)

	if err != nil {
		hc.updateDeploymentHealth(deployment.Provider, false, err.Error(), responseTime)
		log.Printf("[HealthChecker] %s unhealthy: %v", deployment.ID, err)
		return
	}
	hc.updateDeploymentHealth(deployment.Provider, true, "", responseTime)
}

// updateDeploymentHealth updates deployment health status
func (hc *HealthChecker) updateDeploymentHealth(provider models.ProviderType, healthy bool, errorMsg string, responseTime time.Duration) {
	hc.router.deployments.UpdateStatus(provider, func(s *models.DeploymentStatus) {
		s.LastHealthCheck = time.Now()
		s.Healthy = healthy
		s.ResponseTime = responseTime

		if healthy {
			s.ConsecutiveFails = 0
			s.ErrorMessage = ""
		} else {
			s.ConsecutiveFails++
			s.ErrorMessage = errorMsg
		}
	})
}
