package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printbridge/backend/api/controllers"
	"github.com/printbridge/backend/api/middleware"
	"github.com/printbridge/backend/internal/admin"
	"github.com/printbridge/backend/internal/auth"
	"github.com/printbridge/backend/internal/files"
	"github.com/printbridge/backend/internal/printqueue"
	"github.com/printbridge/backend/internal/settings"
	"github.com/printbridge/backend/internal/stations"
	"github.com/printbridge/backend/pkg/config"
	"github.com/printbridge/backend/pkg/logger"
	"github.com/printbridge/backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPing controllers.Pinger,
	redisClient *redis.Client,
	authService auth.Service,
	filesService files.Service,
	settingsService settings.Service,
	stationsService stations.Service,
	queueService printqueue.Service,
	adminService admin.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUserLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterUserLimit,
	)

	r.Get("/health", controllers.Health(dbPing, redisClient, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).
				Post("/register", controllers.Register(authService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
				Post("/login", controllers.Login(authService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, authService, logg))
				r.Get("/profile", controllers.Profile(authService, logg))
				r.Get("/verify", controllers.Verify(logg))
				r.Post("/refresh", controllers.Refresh(authService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, authService, logg))

			r.Post("/upload", controllers.UploadFile(filesService, logg))
			r.Route("/files", func(r chi.Router) {
				r.Get("/", controllers.ListFiles(filesService, logg))
				r.Get("/{id}", controllers.GetFile(filesService, logg))
				r.Delete("/{id}", controllers.DeleteFile(filesService, logg))
				r.Get("/{id}/download", controllers.DownloadFile(filesService, logg))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.GetSettings(settingsService, logg))
				r.Put("/", controllers.UpdateSettings(settingsService, logg))
			})

			r.Route("/stations", func(r chi.Router) {
				r.Get("/", controllers.ListStations(stationsService, logg))
				r.Post("/register", controllers.RegisterStation(stationsService, logg))
				r.Put("/{id}/heartbeat", controllers.StationHeartbeat(stationsService, logg))
				r.Post("/{id}/reconnect", controllers.ReconnectStation(stationsService, logg))
				r.Get("/{id}/status", controllers.StationStatus(stationsService, logg))
				r.Delete("/{id}", controllers.DeactivateStation(stationsService, logg))
			})

			r.Route("/print-queue", func(r chi.Router) {
				r.Get("/", controllers.ListQueue(queueService, logg))
				r.Post("/add/{file_id}", controllers.EnqueueJob(queueService, logg))
				r.Get("/next", controllers.ClaimNextJob(queueService, logg))
				r.Put("/{id}/status", controllers.UpdateJobStatus(queueService, logg))
				r.Delete("/{id}", controllers.DeleteJob(queueService, logg))
				r.Get("/station/{id}", controllers.StationQueue(queueService, logg))
				r.Get("/station/{id}/history", controllers.StationHistory(queueService, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.Get("/check", controllers.AdminCheck(logg))
				r.Get("/dashboard", controllers.AdminDashboard(adminService, logg))
				r.Get("/users", controllers.AdminListUsers(adminService, logg))
				r.Post("/users/{id}/toggle-active", controllers.AdminToggleUser(adminService, logg))
				r.Delete("/users/{id}", controllers.AdminDeleteUser(adminService, logg))
				r.Get("/files", controllers.AdminListFiles(adminService, logg))
				r.Route("/print-jobs", func(r chi.Router) {
					r.Get("/", controllers.AdminListJobs(adminService, logg))
					r.Post("/bulk", controllers.AdminBulkJobs(adminService, logg))
					r.Put("/{id}", controllers.AdminUpdateJob(adminService, logg))
					r.Delete("/{id}", controllers.AdminDeleteJob(adminService, logg))
				})
				r.Route("/stations", func(r chi.Router) {
					r.Get("/", controllers.AdminListStations(adminService, logg))
					r.Put("/{id}", controllers.AdminUpdateStation(adminService, logg))
				})
				r.Get("/audit", controllers.AdminListAudit(adminService, logg))
			})
		})
	})

	return r
}
