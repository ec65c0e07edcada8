package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"fipsreg/config"
	"fipsreg/models"
	"fipsreg/nlp"
	"fipsreg/parsers"
	"fipsreg/services"
	"fipsreg/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	objectsCreatedCounter   prometheus.Counter
	objectsUpdatedCounter   prometheus.Counter
	rowErrorsCounter        prometheus.Counter
	cataloguesParsedCounter prometheus.Counter
)

func init() {
	objectsCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ip_objects_created_total",
		Help: "Total number of new IP objects added to the database.",
	})
	objectsUpdatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ip_objects_updated_total",
		Help: "Total number of IP objects updated in the database.",
	})
	rowErrorsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalogue_row_errors_total",
		Help: "Total number of catalogue rows that failed to parse.",
	})
	cataloguesParsedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalogues_parsed_total",
		Help: "Total number of catalogues parsed successfully.",
	})
	prometheus.MustRegister(objectsCreatedCounter, objectsUpdatedCounter, rowErrorsCounter, cataloguesParsedCounter)
}

// appFactory отложенно собирает зависимости: команды создают приложение
// только когда реально запускаются.
type appFactory func() (*app, error)

// app — общие зависимости всех команд.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
	ingest *services.IngestService
}

func newApp() (*app, error) {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logging.Info("Successfully connected to registry database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(
		&models.Catalogue{},
		&models.IPObject{},
		&models.Person{},
		&models.Organization{},
		&models.NormalizationRule{},
		&models.AuthorLink{},
		&models.OwnerPersonLink{},
		&models.OwnerOrgLink{},
	); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	seedDefaultNormalizationRules(db, logging)

	processor := nlp.NewProcessor(logging, cfg.NLPDocCacheSize)
	detector := nlp.NewTypeDetector(logging, processor, cfg.DetectorCacheSize)
	registry := parsers.NewRegistry(db, logging, processor, detector)

	var files *storage.CatalogueFiles
	if cfg.S3Enabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 client creation failed: %w", err)
		}
		files = storage.NewCatalogueFiles(s3Client, cfg.S3Bucket)
		logging.Info("Catalogue object storage enabled", zap.String("bucket", cfg.S3Bucket))
	}

	return &app{
		cfg:    cfg,
		db:     db,
		logger: logging,
		ingest: services.NewIngestService(cfg, db, logging, registry, files),
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "fipsreg",
		Short:         "FIPS open data catalogue ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(parseCommand(newApp), serveCommand(newApp), cataloguesCommand(newApp))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func parseCommand(newApp appFactory) *cobra.Command {
	var opts services.RunOptions
	var catalogueID uint

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse pending catalogues into the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			if opts.MinYear == 0 {
				opts.MinYear = a.cfg.MinYear
			}
			if !opts.ActiveOnly {
				opts.ActiveOnly = a.cfg.ActiveOnly
			}
			opts.CatalogueID = catalogueID

			// пустая выборка для разового запуска фатальна: оператор
			// должен увидеть ненулевой код выхода
			result, err := a.ingest.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			recordRunMetrics(result)

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().UintVar(&catalogueID, "catalogue", 0, "parse a single catalogue by id")
	cmd.Flags().StringVar(&opts.IPType, "ip-type", "", "parse only catalogues of this ip type")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute everything, write nothing")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-parse already parsed catalogues and ignore row staleness")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "truncate each catalogue to the first N rows")
	cmd.Flags().IntVar(&opts.MinYear, "min-year", 0, "drop rows registered before this year")
	cmd.Flags().BoolVar(&opts.ActiveOnly, "active-only", false, "drop rows whose protection is no longer active")
	cmd.Flags().BoolVar(&opts.MarkParsedOnErrors, "mark-parsed-on-errors", false, "set parsed_date even when some rows failed")
	return cmd
}

func serveCommand(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled pipeline with an observability endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			// затянувшийся прогон не должен пересекаться со следующим:
			// процессор и детектор общие для всех запусков
			cronScheduler := cron.New(cron.WithChain(
				cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(a.logger))),
			))
			_, err = cronScheduler.AddFunc(a.cfg.CronSchedule, func() {
				a.logger.Info("Running scheduled parse job...")
				result, err := a.ingest.Run(context.Background(), services.RunOptions{
					MinYear:    a.cfg.MinYear,
					ActiveOnly: a.cfg.ActiveOnly,
				})
				if errors.Is(err, services.ErrNoCatalogues) {
					a.logger.Info("Cron job found nothing to parse")
					return
				}
				if err != nil {
					a.logger.Error("Cron job failed", zap.Error(err))
					return
				}
				recordRunMetrics(result)
				a.logger.Info("Cron job completed",
					zap.Int("catalogues_parsed", result.CataloguesParsed),
					zap.Int("objects_created", result.Stats.Created))
			})
			if err != nil {
				return fmt.Errorf("invalid cron schedule %q: %w", a.cfg.CronSchedule, err)
			}
			cronScheduler.Start()

			router := gin.Default()
			router.Use(gin.Recovery())
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))
			router.GET("/healthz", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})
			router.GET("/stats", func(c *gin.Context) {
				counts, err := services.TableCounts(a.db)
				if err != nil {
					a.logger.Error("Stats query failed", zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
					return
				}
				c.JSON(http.StatusOK, counts)
			})
			setupCatalogueRoutes(router, a.db, a.logger)

			a.logger.Info("Starting server", zap.String("port", a.cfg.HTTPPort))
			srv := &http.Server{
				Addr:              ":" + a.cfg.HTTPPort,
				Handler:           router,
				ReadTimeout:       30 * time.Second,
				ReadHeaderTimeout: 15 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}
			return srv.ListenAndServe()
		},
	}
}

func cataloguesCommand(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "catalogues",
		Short: "List registered catalogues and their parse state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			var cats []models.Catalogue
			if err := a.db.Order("id asc").Find(&cats).Error; err != nil {
				return fmt.Errorf("list catalogues: %w", err)
			}
			for _, cat := range cats {
				parsed := "pending"
				if cat.ParsedDate != nil {
					parsed = cat.ParsedDate.Format("2006-01-02")
				}
				fmt.Printf("%d\t%s\t%s\t%s\n", cat.ID, cat.IPType, cat.FileKey, parsed)
			}
			return nil
		},
	}
}

// setupCatalogueRoutes регистрирует API каталогов: просмотр и постановка
// нового файла в очередь на разбор.
func setupCatalogueRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/catalogues")

	rg.GET("/", func(c *gin.Context) {
		var cats []models.Catalogue
		if err := db.Order("id asc").Find(&cats).Error; err != nil {
			log.Error("Database query for catalogues failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, cats)
	})

	rg.POST("/", func(c *gin.Context) {
		var cat models.Catalogue
		if err := c.ShouldBindJSON(&cat); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if cat.IPType == "" || cat.FileKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ip_type and file_key are required"})
			return
		}
		cat.ID = 0
		cat.ParsedDate = nil
		if cat.UploadDate == nil {
			now := time.Now()
			cat.UploadDate = &now
		}
		if err := db.Create(&cat).Error; err != nil {
			log.Error("Failed to create catalogue", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create catalogue"})
			return
		}
		c.JSON(http.StatusCreated, cat)
	})
}

func recordRunMetrics(result *services.RunResult) {
	objectsCreatedCounter.Add(float64(result.Stats.Created))
	objectsUpdatedCounter.Add(float64(result.Stats.Updated))
	rowErrorsCounter.Add(float64(result.Stats.Errors))
	cataloguesParsedCounter.Add(float64(result.CataloguesParsed))
}

func seedDefaultNormalizationRules(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.NormalizationRule{}).Count(&count)
	if count > 0 {
		return
	}
	rules := []models.NormalizationRule{
		{Source: "общество с ограниченной ответственностью", Replacement: "ооо", RuleType: models.RuleReplace, Priority: 10},
		{Source: "открытое акционерное общество", Replacement: "оао", RuleType: models.RuleReplace, Priority: 10},
		{Source: "закрытое акционерное общество", Replacement: "зао", RuleType: models.RuleReplace, Priority: 10},
		{Source: "публичное акционерное общество", Replacement: "пао", RuleType: models.RuleReplace, Priority: 10},
		{Source: "федеральное государственное бюджетное образовательное учреждение высшего образования", RuleType: models.RuleIgnore, Priority: 20},
		{Source: "федеральное государственное бюджетное учреждение науки", RuleType: models.RuleIgnore, Priority: 20},
		{Source: "федеральное государственное унитарное предприятие", RuleType: models.RuleIgnore, Priority: 20},
		{Source: "г.", RuleType: models.RuleIgnore, Priority: 30},
	}
	if err := db.Create(&rules).Error; err != nil {
		logger.Warn("Failed to seed default normalization rules", zap.Error(err))
	} else {
		logger.Info("Default normalization rules seeded.")
	}
}
