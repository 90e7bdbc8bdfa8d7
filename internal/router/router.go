package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinirepas/api/internal/config"
	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
	"github.com/clinirepas/api/internal/handler"
	mw "github.com/clinirepas/api/internal/middleware"
	"github.com/clinirepas/api/internal/report"
	"github.com/clinirepas/api/internal/service"
	"github.com/clinirepas/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://repas.clinique-akwa.com",
			"https://stg-repas.clinique-akwa.com",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Patients: nursing and admin staff only
		patientHandler := handler.NewPatientHandler(queries)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleNurse, enum.UserRoleAdmin))
			r.Route("/patients", func(r chi.Router) {
				patientHandler.RegisterRoutes(r)
			})
		})

		// Patient meal orders
		patientOrderService := service.NewPatientOrderService(queries)
		patientOrderHandler := handler.NewPatientOrderHandler(patientOrderService, queries, hub)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleNurse, enum.UserRoleKitchen, enum.UserRoleAdmin))
			r.Route("/patients/{id}/orders", patientOrderHandler.RegisterPatientRoutes)
			r.Route("/orders", patientOrderHandler.RegisterRoutes)
		})

		// Cafeteria menus: everyone can browse, only admins manage
		menuHandler := handler.NewEmployeeMenuHandler(queries)
		r.Route("/employee-menus", func(r chi.Router) {
			r.Get("/", menuHandler.List)
			r.Get("/{id}", menuHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				r.Post("/", menuHandler.Create)
				r.Put("/{id}", menuHandler.Update)
				r.Patch("/{id}/availability", menuHandler.SetAvailability)
			})
		})

		// Cafeteria orders
		newStore := func(db database.DBTX) service.EmployeeOrderStore {
			return database.New(db)
		}
		employeeOrderService := service.NewEmployeeOrderService(pool, queries, newStore)
		employeeOrderHandler := handler.NewEmployeeOrderHandler(employeeOrderService, queries, hub)
		r.Route("/employee-orders", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleEmployee, enum.UserRoleAdmin))
				r.Post("/", employeeOrderHandler.Create)
				r.Get("/mine", employeeOrderHandler.ListMine)
				r.Post("/{id}/cancel", employeeOrderHandler.Cancel)
				r.Delete("/{id}", employeeOrderHandler.Delete)
			})
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleKitchen, enum.UserRoleDelivery, enum.UserRoleAdmin))
				r.Get("/", employeeOrderHandler.List)
				r.Patch("/{id}/status", employeeOrderHandler.UpdateStatus)
			})
			r.Get("/{id}", employeeOrderHandler.Get)
		})

		// Notifications (always scoped to the authenticated user)
		notificationHandler := handler.NewNotificationHandler(queries)
		r.Route("/notifications", notificationHandler.RegisterRoutes)

		// Deliveries
		deliveryHandler := handler.NewDeliveryHandler(queries)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleKitchen, enum.UserRoleDelivery, enum.UserRoleAdmin))
			r.Route("/deliveries", deliveryHandler.RegisterRoutes)
		})

		// Reports: management only
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			reportsHandler := handler.NewReportsHandler(queries, report.NewRenderer(cfg.LogoURL))
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
