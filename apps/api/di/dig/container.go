package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	echoapi "github.com/newstandard/academy/apps/api/echo"
	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/dashboard"
	"github.com/newstandard/academy/core/faq"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
	emailsvc "github.com/newstandard/academy/services/email"
	eventsvc "github.com/newstandard/academy/services/events"
	logsvc "github.com/newstandard/academy/services/logger"
	metricsvc "github.com/newstandard/academy/services/metrics"
	ratelimitsvc "github.com/newstandard/academy/services/ratelimit"
	storagesvc "github.com/newstandard/academy/services/storage"
	"github.com/newstandard/academy/storage/database"
	sqlxrepos "github.com/newstandard/academy/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newPublisher falls back to an in-process publisher when no broker is configured.
func newPublisher(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.Events.URL == "" {
		logger.Warn("events.url not set: events are kept in memory")
		return eventsvc.NewMemoryPublisher()
	}
	pub, err := eventsvc.NewAMQPPublisher(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to the event broker: %v", err), err)
	}
	return pub
}

func newObjectStore(conf *core.Config, logger core.Logger) faq.ObjectStore {
	if conf.Storage.Endpoint == "" {
		logger.Warn("storage.endpoint not set: documents are kept in memory")
		return storagesvc.NewMemoryStore("http://" + conf.Server.Host + "/files")
	}
	store, err := storagesvc.NewMinioStore(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to the object store: %v", err), err)
	}
	return store
}

func newLimiter(conf *core.Config) ratelimitsvc.Limiter {
	if conf.Redis.Address == "" {
		return ratelimitsvc.NewMemoryLimiter(conf)
	}
	return ratelimitsvc.NewRedisLimiter(ratelimitsvc.NewRedisClient(conf), conf)
}

func newMetrics() *metricsvc.Metrics {
	return metricsvc.New(prometheus.DefaultRegisterer)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newCertificateService(
	repo certificate.Repository,
	mailSvc core.EmailService,
	publisher core.EventPublisher,
	m *metricsvc.Metrics,
	logger core.Logger,
) certificate.Service {
	return certificate.NewService(repo, mailSvc, publisher, m, logger)
}

func newQuizService(
	repo quiz.Repository,
	progress quiz.ProgressStore,
	tx core.Transactor,
	certSvc certificate.Service,
	publisher core.EventPublisher,
	m *metricsvc.Metrics,
	logger core.Logger,
) quiz.Service {
	return quiz.NewService(repo, progress, tx, certSvc, publisher, m, logger)
}

func newCourseService(repo course.Repository, certSvc certificate.Service, logger core.Logger) course.Service {
	return course.NewService(repo, certSvc, logger)
}

func newFAQService(repo faq.Repository, store faq.ObjectStore, groupSvc group.Service, conf *core.Config) faq.Service {
	return faq.NewService(repo, store, groupSvc, conf)
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc        user.Service
	CourseSvc      course.Service
	QuizSvc        quiz.Service
	CertificateSvc certificate.Service
	GroupSvc       group.Service
	FAQSvc         faq.Service
	ActivitySvc    activity.Service
	DashboardSvc   dashboard.Service
	Limiter        ratelimitsvc.Limiter
	Metrics        *metricsvc.Metrics
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		CourseSvc:      p.CourseSvc,
		QuizSvc:        p.QuizSvc,
		CertificateSvc: p.CertificateSvc,
		GroupSvc:       p.GroupSvc,
		FAQSvc:         p.FAQSvc,
		ActivitySvc:    p.ActivitySvc,
		DashboardSvc:   p.DashboardSvc,
		Limiter:        p.Limiter,
		Metrics:        p.Metrics,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(newEmailService))
	must(c.Provide(newPublisher))
	must(c.Provide(newObjectStore))
	must(c.Provide(newLimiter))
	must(c.Provide(newMetrics))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository), new(quiz.ProgressStore))))
	must(c.Provide(sqlxrepos.NewQuizRepository))
	must(c.Provide(sqlxrepos.NewCertificateRepository))
	must(c.Provide(sqlxrepos.NewGroupRepository))
	must(c.Provide(sqlxrepos.NewFAQRepository))
	must(c.Provide(sqlxrepos.NewActivityRepository))
	must(c.Provide(sqlxrepos.NewDashboardRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(newCertificateService))
	must(c.Provide(newCourseService))
	must(c.Provide(newQuizService))
	must(c.Provide(group.NewService))
	must(c.Provide(newFAQService))
	must(c.Provide(activity.NewService))
	must(c.Provide(dashboard.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
