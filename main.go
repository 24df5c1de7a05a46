package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"doctor-pubs/config"
	"doctor-pubs/models"
	"doctor-pubs/pubmed"
	"doctor-pubs/services"
)

var (
	newPublicationsCounter prometheus.Counter
	fetchFailuresCounter   prometheus.Counter
)

func init() {
	newPublicationsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "new_publications_added_total",
			Help: "Total number of new publications added to the database.",
		},
	)
	fetchFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pubmed_fetch_failures_total",
			Help: "Total number of failed per-doctor PubMed fetch runs.",
		},
	)
	prometheus.MustRegister(newPublicationsCounter, fetchFailuresCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to publications database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Doctor{}, &models.Publication{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Services
	client := pubmed.NewClient(cfg, logging)
	fetchService := services.NewFetchService(cfg, db, client, logging)
	doctorService := services.NewDoctorService(db, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupDoctorRoutes(router, db, doctorService, logging)
	setupFetchRoutes(router, db, fetchService)
	setupMaintenanceRoutes(router, doctorService, logging)
	setupPublicationRoutes(router, db, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled fetch job...")
		created, failed, err := fetchService.RunForAll(false)
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
			return
		}
		newPublicationsCounter.Add(float64(created))
		fetchFailuresCounter.Add(float64(failed))
		logging.Info("Cron job completed", zap.Int("new_publications", created), zap.Int("failed_doctors", failed))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupDoctorRoutes(router *gin.Engine, db *gorm.DB, doctorService *services.DoctorService, log *zap.Logger) {
	rg := router.Group("/doctors")

	rg.GET("/", func(c *gin.Context) {
		var doctors []models.Doctor
		if err := db.Find(&doctors).Error; err != nil {
			log.Error("Database query for doctors failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, doctors)
	})

	// Anlegen oder Aktualisieren anhand des Namens; die Query wird beim
	// Speichern quote-normalisiert.
	rg.POST("/", func(c *gin.Context) {
		type DoctorRequest struct {
			Name   string `json:"name" binding:"required"`
			Query  string `json:"query"`
			BibURL string `json:"bib_url"`
		}
		var req DoctorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		doctor, err := doctorService.SaveDoctor(req.Name, req.Query, req.BibURL)
		if err != nil {
			log.Error("Failed to save doctor", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save doctor"})
			return
		}
		c.JSON(http.StatusCreated, doctor)
	})

	// Löschen mit Modus: keep behält alle Publikationen, purge verschiebt
	// exklusiv zugeordnete in den Papierkorb. Die Antwort nennt den
	// angewandten Modus für die Operator-Meldung.
	rg.DELETE("/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid doctor id"})
			return
		}
		mode := c.DefaultQuery("mode", services.DeleteModeKeep)

		result, err := doctorService.DeleteDoctor(uint(id), mode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "doctor not found"})
				return
			}
			log.Error("Failed to delete doctor", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete doctor"})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupFetchRoutes(router *gin.Engine, db *gorm.DB, fetchService *services.FetchService) {
	rg := router.Group("/fetch")

	rg.POST("/all", func(c *gin.Context) {
		force := c.Query("force") == "1"
		go func() {
			created, failed, err := fetchService.RunForAll(force)
			if err != nil {
				fetchService.Logger.Error("Async all-doctors fetch failed", zap.Error(err))
				return
			}
			newPublicationsCounter.Add(float64(created))
			fetchFailuresCounter.Add(float64(failed))
			fetchService.Logger.Info("Async all-doctors fetch completed",
				zap.Int("new_publications", created), zap.Int("failed_doctors", failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Fetch for all doctors triggered."})
	})

	rg.POST("/doctor/:id", func(c *gin.Context) {
		id := c.Param("id")
		force := c.Query("force") == "1"

		var doctor models.Doctor
		if err := db.First(&doctor, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "doctor not found"})
			return
		}

		go func() {
			created, err := fetchService.RunForDoctor(&doctor, force)
			if err != nil {
				fetchFailuresCounter.Inc()
				fetchService.Logger.Error("Async single fetch failed", zap.String("doctor", doctor.Name), zap.Error(err))
				return
			}
			newPublicationsCounter.Add(float64(created))
			fetchService.Logger.Info("Async single fetch completed",
				zap.Int("new_publications", created), zap.String("doctor", doctor.Name))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Fetch for doctor " + doctor.Name + " triggered."})
	})
}

func setupMaintenanceRoutes(router *gin.Engine, doctorService *services.DoctorService, log *zap.Logger) {
	rg := router.Group("/maintenance")

	rg.POST("/rebuild-dates", func(c *gin.Context) {
		updated, err := doctorService.RebuildDates()
		if err != nil {
			log.Error("Rebuild dates failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuild dates failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	})
}

func setupPublicationRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/publications")

	// Liste, neueste zuerst; optional auf einen Doktor gefiltert.
	rg.GET("/", func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if err != nil || limit <= 0 {
			limit = 10
		}

		query := db.Model(&models.Publication{})
		if doctorName := c.Query("doctor"); doctorName != "" {
			query = query.
				Joins("JOIN publication_doctors pd ON pd.publication_id = publications.id").
				Joins("JOIN doctors d ON d.id = pd.doctor_id").
				Where("d.name = ?", doctorName)
		}

		var pubs []models.Publication
		if err := query.Order("sort_date DESC").Limit(limit).Find(&pubs).Error; err != nil {
			log.Error("Database query for publications failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, pubs)
	})
}
