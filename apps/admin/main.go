package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
	emailsvc "github.com/trezcool/preschool/services/email"
	imagehostsvc "github.com/trezcool/preschool/services/imagehost"
	logsvc "github.com/trezcool/preschool/services/logger"
	"github.com/trezcool/preschool/storage/database"
	sqlxrepos "github.com/trezcool/preschool/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewLogger(stdLogger, conf)

	if conf.Database.Engine == "inmem" {
		logger.Fatal("the admin CLI needs a persistent database: set database.engine to postgres")
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	progress.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	images, err := imagehostsvc.NewLocalHost(conf.ImageHost)
	errAndDie(logger, err)

	clock := clockwork.NewRealClock()
	usrRepo := sqlxrepos.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleService(conf, logger, stdLogger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf, clock)

	// start CLI
	cli := commandLine{
		db:         db,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		studentSvc: student.NewService(sqlxrepos.NewStudentRepository(db), usrSvc, images, logger, clock),
		validate:   validate,
		translator: translator,
		clock:      clock,
		out:        os.Stdout,
	}
	code := 0
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		code = 1
	}
	_ = db.Close()
	logger.Close()
	os.Exit(code)
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
