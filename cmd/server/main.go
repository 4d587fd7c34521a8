// @title           Droply API
// @version         1.0
// @description     Backend for the Droply cloud file storage dashboard.
// @host            localhost
// @schemes         http https
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"droply/internal/api"
	"droply/internal/auth"
	"droply/internal/config"
	"droply/internal/database"
	"droply/internal/mediahost"
	"droply/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "droply/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Nie można połączyć się z bazą danych: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Nie można pingować bazy danych: %v", err)
	}
	log.Println("Pomyślnie połączono z bazą danych")

	verifier, err := auth.NewJWKSVerifier(context.Background(), cfg.Auth.JWKSURL, cfg.Auth.Issuer)
	if err != nil {
		log.Fatalf("Nie można zainicjować weryfikatora JWKS: %v", err)
	}
	log.Printf("Tokeny weryfikowane przez JWKS: %s", cfg.Auth.JWKSURL)

	imageKit := mediahost.NewImageKit(cfg.ImageKit.PublicKey, cfg.ImageKit.PrivateKey, cfg.ImageKit.URLEndpoint)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool, wsHub)
	server := api.NewServer(cfg, store, imageKit, verifier, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://localhost/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(server.AuthMiddleware)
		r.Get("/me", server.GetCurrentUserHandler)
		r.Get("/imagekit-auth", server.ImageKitAuthHandler)
		r.Get("/files", server.ListFilesHandler)
		r.Post("/files/upload", server.UploadFileHandler)
		r.Post("/upload", server.RegisterUploadHandler)
		r.Post("/folders/create", server.CreateFolderHandler)
		r.Get("/files/trash", server.ListTrashHandler)
		r.Delete("/files/trash/empty", server.EmptyTrashHandler)
		r.Patch("/files/{fileId}/starred", server.ToggleStarredHandler)
		r.Patch("/files/{fileId}/trash", server.ToggleTrashHandler)
		r.Delete("/files/{fileId}/delete", server.DeleteFileHandler)
		r.Get("/events", server.GetEventsHandler)
	})

	log.Printf("Uruchamianie serwera na %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}
