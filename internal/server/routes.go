package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (live job progress, metric samples, log stream)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Synchronous scoring
	mux.HandleFunc("/api/match", s.app.MatchHandler.MatchHandler) // POST - score one pair

	// Batch jobs
	mux.HandleFunc("/api/batches", s.handleBatchesRoute)                          // GET (list), POST (submit)
	mux.HandleFunc("/api/batches/stats", s.app.BatchHandler.BatchStatsHandler)    // GET - job state + queue counters
	mux.HandleFunc("/api/batches/", s.handleBatchRoutes)                          // GET /{id}, GET /{id}/health, POST /{id}/cancel
	mux.HandleFunc("/api/matches/", s.handleMatchRoutes)                          // POST /{company_id}/{opportunity_id}/brief
	mux.HandleFunc("/api/briefs/", s.handleBriefRoutes)                           // GET /{id}
	mux.HandleFunc("/api/events/recent", s.app.StatusHandler.RecentEventsHandler) // GET - recent bus activity

	// Catalog and profiles
	mux.HandleFunc("/api/opportunities", s.handleOpportunitiesRoute) // GET (list), PUT (upsert)
	mux.HandleFunc("/api/opportunities/", s.handleOpportunityRoutes) // GET/DELETE /{notice_id}
	mux.HandleFunc("/api/companies", s.handleCompaniesRoute)         // GET (list), PUT (upsert)
	mux.HandleFunc("/api/companies/", s.handleCompanyRoutes)         // GET/DELETE /{id} and subresources

	// Vector store surface
	mux.HandleFunc("/api/vectors/", s.app.VectorHandler.HandleVectorRoutes) // PUT/GET/DELETE /{key}

	// Schedules
	mux.HandleFunc("/api/schedules", s.handleSchedulesRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/schedules/", s.handleScheduleRoutes)

	// System
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.SystemStatusHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// handleBatchesRoute routes /api/batches requests (list and submit)
func (s *Server) handleBatchesRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.BatchHandler.ListBatchesHandler,
		s.app.BatchHandler.SubmitBatchHandler,
	)
}

// handleBatchRoutes routes /api/batches/{id} requests and subresources
func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/batches/{id}/health
	if strings.HasSuffix(path, "/health") {
		RouteByMethod(w, r, MethodRouter{
			"GET": s.app.BatchHandler.GetBatchHealthHandler,
		})
		return
	}

	// POST /api/batches/{id}/cancel
	if strings.HasSuffix(path, "/cancel") {
		RouteByMethod(w, r, MethodRouter{
			"POST": s.app.BatchHandler.CancelBatchHandler,
		})
		return
	}

	// GET /api/batches/{id}
	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.BatchHandler.GetBatchHandler,
	})
}

// handleMatchRoutes routes /api/matches/{company_id}/{opportunity_id}/brief
func (s *Server) handleMatchRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/brief") {
		RouteByMethod(w, r, MethodRouter{
			"POST": s.app.BriefHandler.GenerateBriefHandler,
		})
		return
	}

	http.Error(w, "Not found", http.StatusNotFound)
}

// handleBriefRoutes routes /api/briefs/{id} requests
func (s *Server) handleBriefRoutes(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.BriefHandler.GetBriefHandler,
	})
}

// handleOpportunitiesRoute routes /api/opportunities requests (list and upsert)
func (s *Server) handleOpportunitiesRoute(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r,
		s.app.OpportunityHandler.ListOpportunitiesHandler,
		nil,
		s.app.OpportunityHandler.UpsertOpportunityHandler,
		nil,
	)
}

// handleOpportunityRoutes routes /api/opportunities/{notice_id} requests
func (s *Server) handleOpportunityRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r,
		s.app.OpportunityHandler.GetOpportunityHandler,
		nil,
		s.app.OpportunityHandler.DeleteOpportunityHandler,
	)
}

// handleCompaniesRoute routes /api/companies requests (list and upsert)
func (s *Server) handleCompaniesRoute(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r,
		s.app.CompanyHandler.ListCompaniesHandler,
		nil,
		s.app.CompanyHandler.UpsertCompanyHandler,
		nil,
	)
}

// handleCompanyRoutes routes /api/companies/{id} requests and subresources
func (s *Server) handleCompanyRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/companies/{id}/matches
	if strings.HasSuffix(path, "/matches") {
		RouteByMethod(w, r, MethodRouter{
			"GET": s.app.CompanyHandler.CompanyMatchesHandler,
		})
		return
	}

	// GET /api/companies/{id}/report.pdf
	if strings.HasSuffix(path, "/report.pdf") {
		RouteByMethod(w, r, MethodRouter{
			"GET": s.app.CompanyHandler.CompanyReportHandler,
		})
		return
	}

	// GET /api/companies/{id}/briefs
	if strings.HasSuffix(path, "/briefs") {
		RouteByMethod(w, r, MethodRouter{
			"GET": s.app.CompanyHandler.CompanyBriefsHandler,
		})
		return
	}

	// GET/DELETE /api/companies/{id}
	RouteResourceItem(w, r,
		s.app.CompanyHandler.GetCompanyHandler,
		nil,
		s.app.CompanyHandler.DeleteCompanyHandler,
	)
}

// handleSchedulesRoute routes /api/schedules requests (list and create)
func (s *Server) handleSchedulesRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.ScheduleHandler.ListSchedulesHandler,
		s.app.ScheduleHandler.CreateScheduleHandler,
	)
}

// handleScheduleRoutes routes /api/schedules/{name} requests and trigger
func (s *Server) handleScheduleRoutes(w http.ResponseWriter, r *http.Request) {
	// POST /api/schedules/{name}/trigger
	if strings.HasSuffix(r.URL.Path, "/trigger") {
		RouteByMethod(w, r, MethodRouter{
			"POST": s.app.ScheduleHandler.TriggerScheduleHandler,
		})
		return
	}

	// GET/PUT/DELETE /api/schedules/{name}
	RouteCRUD(w, r,
		s.app.ScheduleHandler.GetScheduleHandler,
		nil,
		s.app.ScheduleHandler.UpdateScheduleHandler,
		s.app.ScheduleHandler.DeleteScheduleHandler,
	)
}
