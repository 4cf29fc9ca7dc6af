package main

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
	emailsvc "github.com/newstandard/academy/services/email"
	eventsvc "github.com/newstandard/academy/services/events"
	logsvc "github.com/newstandard/academy/services/logger"
	metricsvc "github.com/newstandard/academy/services/metrics"
	"github.com/newstandard/academy/storage/database"
	sqlxrepos "github.com/newstandard/academy/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	core.ParseEmailTemplates(conf, logger)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	var publisher core.EventPublisher = eventsvc.NewMemoryPublisher()
	closePublisher := func() {}
	if conf.Events.URL != "" {
		amqpPub, err := eventsvc.NewAMQPPublisher(conf)
		errAndDie(err)
		closePublisher = func() { _ = amqpPub.Close() }
		publisher = amqpPub
	}
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		courseRepo: sqlxrepos.NewCourseRepository(db),
		issuer: certificate.NewService(
			sqlxrepos.NewCertificateRepository(db),
			mailSvc,
			publisher,
			metricsvc.New(prometheus.NewRegistry()),
			logger,
		),
	}
	err = cli.run(os.Args)
	closePublisher()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
