package middlewares

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/labstack/echo/v4"
)

// AddProfileEndpoints mounts the net/http/pprof handlers under /debug/pprof.
// Only wired when ENABLE_PROFILING is set - the profile and trace endpoints
// hold the request open for the duration of the capture.
func AddProfileEndpoints(e *echo.Echo) {
	slog.Warn("profiling endpoints enabled under /debug/pprof")

	g := e.Group("/debug/pprof")
	g.GET("", wrapPprof(pprof.Index))
	g.GET("/", wrapPprof(pprof.Index))
	g.GET("/cmdline/", wrapPprof(pprof.Cmdline))
	g.GET("/profile/", wrapPprof(pprof.Profile))
	g.GET("/symbol/", wrapPprof(pprof.Symbol))
	g.POST("/symbol/", wrapPprof(pprof.Symbol))
	g.GET("/trace/", wrapPprof(pprof.Trace))

	// the named runtime profiles all go through the same lookup handler
	for _, profile := range []string{"heap", "goroutine", "block", "threadcreate", "mutex", "allocs"} {
		g.GET("/"+profile+"/", wrapPprof(pprof.Handler(profile).ServeHTTP))
	}
}

func wrapPprof(h http.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		h(ctx.Response().Writer, ctx.Request())
		return nil
	}
}
