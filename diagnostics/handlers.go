package diagnostics

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/extension"
	"github.com/kbukum/hostkit/health"
	"github.com/kbukum/hostkit/hosting"
	"github.com/kbukum/hostkit/identity"
	"github.com/kbukum/hostkit/version"
)

// Sources are the values the routes render. Nil fields produce 404s.
type Sources struct {
	Tracker    *health.Tracker
	Extensions *extension.Registry
	Identity   *identity.Identity
	// Components is read on every request, so it reflects components
	// that were disabled after the server was built.
	Components func() Components
}

// Components lists the components that were not built.
type Components struct {
	Disabled []hosting.Disablement `json:"disabled"`
	Failed   []FailureView         `json:"failed"`
}

// FailureView is the JSON form of a hosting.Failure.
type FailureView struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

// ComponentsOf snapshots the disablements and failures of a build context.
func ComponentsOf(bctx *hosting.BuildContext) Components {
	out := Components{
		Disabled: bctx.Disablements(),
		Failed:   []FailureView{},
	}
	if out.Disabled == nil {
		out.Disabled = []hosting.Disablement{}
	}
	for _, f := range bctx.Failures() {
		out.Failed = append(out.Failed, FailureView{Component: f.Component, Error: f.Err.Error()})
	}
	return out
}

// ExtensionView describes one registered extension.
type ExtensionView struct {
	Type string `json:"type"`
}

// RegisterRoutes adds the diagnostics routes to the engine.
func (s *Server) RegisterRoutes(src Sources) {
	s.engine.GET("/health", healthReport(src.Tracker))
	s.engine.GET("/health/run", runChecks(src.Tracker))
	s.engine.GET("/extensions", extensionList(src.Extensions))
	s.engine.GET("/components", componentList(src.Components))
	s.engine.GET("/identity", identityView(src.Identity))
	s.engine.GET("/version", versionView)
}

func statusCode(status health.Status) int {
	if status == health.StatusFailing {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " is not available"})
}

func healthReport(tracker *health.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil {
			notConfigured(c, "health tracker")
			return
		}
		report := tracker.CurrentReport()
		c.JSON(statusCode(report.Status), report)
	}
}

func runChecks(tracker *health.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil {
			notConfigured(c, "health tracker")
			return
		}
		report, err := tracker.RunOnce(c.Request.Context())
		switch {
		case errors.HasCode(err, errors.ErrCodeInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": tracker.State().String()})
		case err != nil:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(statusCode(report.Status), report)
		}
	}
}

func extensionList(registry *extension.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if registry == nil {
			notConfigured(c, "extension registry")
			return
		}
		entries := registry.All()
		views := make([]ExtensionView, 0, len(entries))
		for _, e := range entries {
			views = append(views, ExtensionView{Type: e.Type.String()})
		}
		c.JSON(http.StatusOK, gin.H{"extensions": views})
	}
}

func componentList(fn func() Components) gin.HandlerFunc {
	return func(c *gin.Context) {
		if fn == nil {
			notConfigured(c, "component list")
			return
		}
		c.JSON(http.StatusOK, fn())
	}
}

func identityView(id *identity.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id == nil {
			notConfigured(c, "identity")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"identity":     id,
			"path":         id.String(),
			"service_name": id.ServiceName(),
		})
	}
}

func versionView(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
