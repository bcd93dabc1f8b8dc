package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/preschool/apps/api/echo"
	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/report"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/suggestion"
	"github.com/trezcool/preschool/core/user"
	aisvc "github.com/trezcool/preschool/services/ai"
	digestsvc "github.com/trezcool/preschool/services/digest"
	emailsvc "github.com/trezcool/preschool/services/email"
	imagehostsvc "github.com/trezcool/preschool/services/imagehost"
	logsvc "github.com/trezcool/preschool/services/logger"
	reportsvc "github.com/trezcool/preschool/services/report"
	"github.com/trezcool/preschool/storage/cache/memcache"
	"github.com/trezcool/preschool/storage/cache/rediscache"
	"github.com/trezcool/preschool/storage/database"
	inmemdb "github.com/trezcool/preschool/storage/database/inmem"
	sqlxrepos "github.com/trezcool/preschool/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closer releases a resource on shutdown.
type Closer func() error

// Repositories are the storage of every domain.
type Repositories struct {
	dig.Out
	Users    user.Repository
	Students student.Repository
	Entries  progress.Repository
	Plans    plan.Repository
	Close    Closer `name:"dbCloser"`
}

// CacheResult is the response cache and its closer.
type CacheResult struct {
	dig.Out
	Cache core.Cache
	Close Closer `name:"cacheCloser"`
}

type serverParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Clock         clockwork.Clock
	Validate      *validator.Validate
	Translator    ut.Translator
	Cache         core.Cache
	UserSvc       user.Service
	StudentSvc    student.Service
	ProgressSvc   progress.Service
	PlanSvc       plan.Service
	ReportSvc     report.Service
	Renderer      report.Renderer
	SuggestionSvc suggestion.Service
}

func newLogger(conf *core.Config) *logsvc.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewLogger(stdLogger, conf)
}

func newAPILogger(logger *logsvc.Logger) core.Logger {
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewLogger(stdLogger, conf)
}

// newRepositories opens the configured database engine.
// Postgres is created and migrated on startup.
func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == "inmem" {
		loggerParam.Logger.Info("using the in-memory database: data will not survive restarts")
		db := inmemdb.Open()
		return Repositories{
			Users:    inmemdb.NewUserRepository(db),
			Students: inmemdb.NewStudentRepository(db),
			Entries:  inmemdb.NewProgressRepository(db),
			Plans:    inmemdb.NewPlanRepository(db),
			Close:    func() error { return nil },
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Repositories{
		Users:    sqlxrepos.NewUserRepository(db),
		Students: sqlxrepos.NewStudentRepository(db),
		Entries:  sqlxrepos.NewProgressRepository(db),
		Plans:    sqlxrepos.NewPlanRepository(db),
		Close:    db.Close,
	}
}

// newCache uses Redis when an address is configured, the in-process cache otherwise.
func newCache(conf *core.Config, clock clockwork.Clock, logger core.Logger) CacheResult {
	if conf.Redis.Addr == "" {
		return CacheResult{Cache: memcache.New(clock), Close: func() error { return nil }}
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	cache, err := rediscache.Open(ctx, conf.Redis, conf.AppName)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return CacheResult{Cache: cache, Close: cache.Close}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newImageHost(conf *core.Config, logger core.Logger) core.ImageHost {
	if conf.ImageHost.Provider == "imgbb" {
		return imagehostsvc.NewImgbbHost(conf.ImageHost, logger)
	}
	host, err := imagehostsvc.NewLocalHost(conf.ImageHost)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up local image host: %v", err), err)
	}
	return host
}

// newSuggester uses OpenAI when an API key is configured.
func newSuggester(conf *core.Config, logger core.Logger) suggestion.Suggester {
	if conf.OpenAI.APIKey == "" {
		logger.Info("no OpenAI API key: serving offline suggestions")
		return aisvc.NewOfflineSuggester()
	}
	return aisvc.NewOpenAIClient(conf.OpenAI, logger)
}

func newClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Clock:         p.Clock,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Cache:         p.Cache,
		UserSvc:       p.UserSvc,
		StudentSvc:    p.StudentSvc,
		ProgressSvc:   p.ProgressSvc,
		PlanSvc:       p.PlanSvc,
		ReportSvc:     p.ReportSvc,
		Renderer:      p.Renderer,
		SuggestionSvc: p.SuggestionSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infra
	must(c.Provide(core.NewConfig))
	must(c.Provide(newClock))
	must(c.Provide(newLogger))
	must(c.Provide(newAPILogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(newImageHost))
	must(c.Provide(newSuggester))
	must(c.Provide(reportsvc.NewRenderer))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// domain services
	must(c.Provide(user.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(progress.NewService))
	must(c.Provide(plan.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(suggestion.NewService))

	// apps
	must(c.Provide(digestsvc.NewScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
