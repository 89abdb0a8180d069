package http

import (
	"errors"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/codetrail/learngate/internal/domain"
	infra "github.com/codetrail/learngate/internal/infrastructure"
	"github.com/codetrail/learngate/internal/infrastructure/auth"
	"github.com/codetrail/learngate/internal/infrastructure/driver"
	"github.com/codetrail/learngate/internal/infrastructure/validate"
	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/codetrail/learngate/internal/profile"
	"github.com/codetrail/learngate/internal/upstream"
	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

type endpoint struct {
	apiVersion  string
	middlewares []echo.MiddlewareFunc
	groups      []*apiGroup
}

type apiGroup struct {
	prefix      string
	middlewares []echo.MiddlewareFunc
	routes      []*route
}

type route struct {
	method      string
	path        string
	handler     echo.HandlerFunc
	middlewares []echo.MiddlewareFunc
}

// Serve create http transport server
func Serve(
	kv driver.KeyValueDB,
	api *upstream.Client,
	option *infra.AppConfig,
	sessions domain.SessionManager,
	catalogReader domain.CatalogReader,
	tracker domain.ProgressTracker,
	profileService *profile.Service,
	logger *zap.Logger,
) {
	app := echo.New()
	jwtUtil := auth.NewJWTUtil(option.Security.JWTMethod,
		option.Security.JWTSecret,
		option.Security.TokenName,
		option.SessionTimeout)
	validator := validate.NewValidator()
	feed := NewProgressFeed(logger)
	sessionMiddleware := middleware.LoadSession(jwtUtil, sessions)
	requireSession := middleware.RequireSession()

	registerLivenessProbe(app, kv, api)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}
	app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
		Skipper: func(e echo.Context) bool {
			return strings.HasPrefix(e.Request().RequestURI, "/healthz")
		},
	}))
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: respondError(jwtUtil, logger),
			Logger:  logger,
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
	}))
	app.Use(middleware.NoRouteMatched())

	AuthHandler := NewAuthHandler(api, sessions, jwtUtil, validator)
	CatalogHandler := NewCatalogHandler(catalogReader, tracker)
	ProgressHandler := NewProgressHandler(tracker, feed)
	ProfileHandler := NewProfileHandler(profileService)

	createEndpoint(app, v1Endpoint(
		feed,
		AuthHandler,
		CatalogHandler,
		ProgressHandler,
		ProfileHandler,
		sessionMiddleware, requireSession, echo_middleware.RequestID(), middleware.SetTraceLogger(logger),
	))

	printRoutes(app, logger)
	if err := app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port)); err != nil {
		log.Fatal(err)
	}
}

// respondError translate domain failures at the boundary: a rejected
// credential clears the session cookie and demands re-authentication, a
// missing resource is the caller's problem, an upstream failure is reported
// as a bad gateway the caller may retry.
func respondError(ju *auth.JWTUtil, logger *zap.Logger) func(c echo.Context, err error) {
	return func(c echo.Context, err error) {
		traceID := c.Response().Header().Get(echo.HeaderXRequestID)
		var te *domain.TransportError
		switch {
		case err == domain.ErrUnauthenticated:
			ju.ClearClientToken(c)
			c.JSON(http.StatusUnauthorized,
				NewRESTStandardError(http.StatusUnauthorized, err.Error()).SetTraceID(traceID))
		case err == domain.ErrNotFound:
			c.JSON(http.StatusNotFound,
				NewRESTStandardError(http.StatusNotFound, err.Error()).SetTraceID(traceID))
		case errors.As(err, &te):
			logger.Warn(te.Error(), zap.String("trace.id", traceID), zap.String("upstream.op", te.Op))
			c.JSON(http.StatusBadGateway,
				NewRESTStandardError(http.StatusBadGateway, "Course service is unavailable, try again").SetTraceID(traceID))
		default:
			if he, ok := err.(*echo.HTTPError); ok {
				c.JSON(he.Code,
					NewRESTStandardError(he.Code, fmt.Sprintf("%v", he.Message)).SetTraceID(traceID))
				return
			}
			logger.Error(err.Error(), zap.String("trace.id", traceID))
			c.JSON(http.StatusInternalServerError,
				NewRESTStandardError(http.StatusInternalServerError, err.Error()).SetTraceID(traceID))
		}
	}
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			name := route.Name
			trimIndex := strings.LastIndexByte(name, '/')
			logger.Debug("Registered route", zap.String("method", route.Method), zap.String("path", route.Path), zap.String("name", string(name[trimIndex+1:])))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, kv driver.KeyValueDB, api *upstream.Client) {
	app.GET("/healthz", func(c echo.Context) error {
		if kv.Ping() == nil && api.Ping() == nil {
			c.NoContent(http.StatusOK)
		} else {
			c.NoContent(http.StatusServiceUnavailable)
		}
		return nil
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}

func createEndpoint(app *echo.Echo, def *endpoint) {
	type RESTMethod func(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route

	var root *echo.Group
	if strings.HasPrefix(def.apiVersion, "/") {
		root = app.Group(def.apiVersion, def.middlewares...)
	} else {
		root = app.Group("/"+def.apiVersion, def.middlewares...)
	}

	for _, group := range def.groups {
		echoGroup := root.Group(group.prefix, group.middlewares...)
		for _, api := range group.routes {
			var method RESTMethod
			switch api.method {
			case "GET":
				method = echoGroup.GET
			case "POST":
				method = echoGroup.POST
			case "PUT":
				method = echoGroup.PUT
			case "DELETE":
				method = echoGroup.DELETE
			case "HEAD":
				method = echoGroup.HEAD
			default:
				panic(fmt.Errorf("createEndpoint: unknown method %s", api.method))
			}
			method(api.path, api.handler, api.middlewares...)
		}
	}
}
