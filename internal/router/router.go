package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astra-lms/astra-api/internal/config"
	"github.com/astra-lms/astra-api/internal/handler"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseHandler     *handler.CourseHandler
	CategoryHandler   *handler.CategoryHandler
	RoundHandler      *handler.RoundHandler
	ExerciseHandler   *handler.ExerciseHandler
	SubmissionHandler *handler.SubmissionHandler
	SummaryHandler    *handler.SummaryHandler
	JWTMiddleware     fiber.Handler
	StaffMiddleware   fiber.Handler
	SubmitLimiter     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	staff := deps.StaffMiddleware
	if staff == nil {
		staff = func(c *fiber.Ctx) error { return c.Next() }
	}
	submitLimiter := deps.SubmitLimiter
	if submitLimiter == nil {
		submitLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.CourseHandler != nil {
		courses := api.Group("/courses", jwtMiddleware)
		deps.CourseHandler.Register(courses, staff)

		if deps.SummaryHandler != nil {
			deps.SummaryHandler.Register(courses.Group("/:courseKey"))
		}
		if deps.CategoryHandler != nil {
			deps.CategoryHandler.RegisterCourseScoped(courses.Group("/:courseKey"), staff)
		}
		if deps.RoundHandler != nil {
			deps.RoundHandler.Register(courses.Group("/:courseKey/rounds"), staff)
		}
	}

	if deps.CategoryHandler != nil {
		categories := api.Group("/categories", jwtMiddleware)
		deps.CategoryHandler.Register(categories, staff)
	}

	if deps.RoundHandler != nil {
		rounds := api.Group("/rounds", jwtMiddleware)
		deps.RoundHandler.RegisterRoundScoped(rounds)
		if deps.ExerciseHandler != nil {
			deps.ExerciseHandler.RegisterRoundScoped(rounds, staff)
		}
		if deps.SubmissionHandler != nil {
			deps.SubmissionHandler.RegisterRoundScoped(rounds, staff)
		}
	}

	if deps.ExerciseHandler != nil {
		exercises := api.Group("/exercises", jwtMiddleware)
		deps.ExerciseHandler.Register(exercises, staff)
		if deps.SubmissionHandler != nil {
			deps.SubmissionHandler.RegisterExerciseScoped(exercises, submitLimiter, staff)
		}
	}

	// The grade callback is posted by the exercise service and carries no
	// user token; the submission hash is its credential. Regrade attaches
	// auth per route so the group stays open for the callback.
	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions")
		deps.SubmissionHandler.Register(submissions, jwtMiddleware, staff)
	}
}
