package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/repository"
)

// ErrConfigURLMissing indicates the course has no remote configuration URL.
var ErrConfigURLMissing = errors.New("course has no configuration url")

// ErrInvalidCourseConfig indicates the remote configuration document failed
// schema validation.
var ErrInvalidCourseConfig = errors.New("invalid course configuration document")

// courseConfigSchema validates the configuration document served by the
// exercise service before anything is written to the database.
const courseConfigSchema = `{
  "type": "object",
  "required": ["modules"],
  "properties": {
    "name": {"type": "string"},
    "categories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "status": {"enum": ["ready", "hidden"]},
          "points_to_pass": {"type": "integer", "minimum": 0}
        }
      }
    },
    "modules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "name", "opening_time", "closing_time"],
        "properties": {
          "key": {"type": "string"},
          "name": {"type": "string"},
          "order": {"type": "integer"},
          "status": {"enum": ["ready", "hidden", "maintenance"]},
          "opening_time": {"type": "string", "format": "date-time"},
          "closing_time": {"type": "string", "format": "date-time"},
          "late_close": {"type": "string", "format": "date-time"},
          "late_penalty": {"type": "number", "minimum": 0, "maximum": 1},
          "points_to_pass": {"type": "integer", "minimum": 0},
          "exercises": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["key", "name", "category", "url", "max_points"],
              "properties": {
                "key": {"type": "string"},
                "name": {"type": "string"},
                "category": {"type": "string"},
                "url": {"type": "string"},
                "max_points": {"type": "integer", "minimum": 0},
                "points_to_pass": {"type": "integer", "minimum": 0},
                "max_submissions": {"type": "integer", "minimum": 0},
                "grade_item_number": {"type": "integer", "minimum": 1}
              }
            }
          },
          "chapters": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["key", "name", "category"],
              "properties": {
                "key": {"type": "string"},
                "name": {"type": "string"},
                "category": {"type": "string"},
                "url": {"type": "string"},
                "generate_toc": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

// RemoteConfigFetcher is the outbound surface used to retrieve the course
// configuration document.
type RemoteConfigFetcher interface {
	FetchJSON(ctx context.Context, rawURL, apiKey string) ([]byte, error)
}

// CourseService manages course configuration rows and imports course content
// from the exercise service.
type CourseService interface {
	Get(ctx context.Context, courseKey string) (dto.CourseResponse, error)
	Upsert(ctx context.Context, payload dto.CourseUpsertRequest) (dto.CourseResponse, error)
	Import(ctx context.Context, courseKey string) (dto.ImportResult, error)
	ListFailureEvents(ctx context.Context, courseKey string, limit int) ([]models.ServiceFailureEvent, error)
}

type courseService struct {
	courses    repository.CourseRepository
	categories repository.CategoryRepository
	rounds     repository.RoundRepository
	exercises  repository.ExerciseRepository
	events     repository.EventRepository
	fetcher    RemoteConfigFetcher
	failures   FailureRecorder
	schema     *jsonschema.Schema
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(
	courses repository.CourseRepository,
	categories repository.CategoryRepository,
	rounds repository.RoundRepository,
	exercises repository.ExerciseRepository,
	events repository.EventRepository,
	fetcher RemoteConfigFetcher,
	failures FailureRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) CourseService {
	schema := jsonschema.MustCompileString("course_config.json", courseConfigSchema)

	return &courseService{
		courses:    courses,
		categories: categories,
		rounds:     rounds,
		exercises:  exercises,
		events:     events,
		fetcher:    fetcher,
		failures:   failures,
		schema:     schema,
		validator:  validate,
		logger:     logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) Get(ctx context.Context, courseKey string) (dto.CourseResponse, error) {
	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Upsert(ctx context.Context, payload dto.CourseUpsertRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	moduleNumbering := payload.ModuleNumbering
	if moduleNumbering == "" {
		moduleNumbering = models.NumberingArabic
	}
	contentNumbering := payload.ContentNumbering
	if contentNumbering == "" {
		contentNumbering = models.NumberingArabic
	}

	course := models.Course{
		CourseKey:        payload.CourseKey,
		Name:             payload.Name,
		APIKey:           payload.APIKey,
		ConfigURL:        payload.ConfigURL,
		ModuleNumbering:  moduleNumbering,
		ContentNumbering: contentNumbering,
	}

	if err := s.courses.Upsert(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

// ListFailureEvents returns the most recent service failure events for a
// course, newest first.
func (s *courseService) ListFailureEvents(ctx context.Context, courseKey string, limit int) ([]models.ServiceFailureEvent, error) {
	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	return s.events.ListByCourse(ctx, course.ID, limit)
}

type configDocument struct {
	Name       string `json:"name"`
	Categories []struct {
		Name         string `json:"name"`
		Status       string `json:"status"`
		PointsToPass int    `json:"points_to_pass"`
	} `json:"categories"`
	Modules []struct {
		Key          string     `json:"key"`
		Name         string     `json:"name"`
		Order        int        `json:"order"`
		Status       string     `json:"status"`
		OpeningTime  time.Time  `json:"opening_time"`
		ClosingTime  time.Time  `json:"closing_time"`
		LateClose    *time.Time `json:"late_close"`
		LatePenalty  float64    `json:"late_penalty"`
		PointsToPass int        `json:"points_to_pass"`
		Exercises    []struct {
			Key             string `json:"key"`
			Name            string `json:"name"`
			Category        string `json:"category"`
			URL             string `json:"url"`
			MaxPoints       int    `json:"max_points"`
			PointsToPass    int    `json:"points_to_pass"`
			MaxSubmissions  *int   `json:"max_submissions"`
			GradeItemNumber int    `json:"grade_item_number"`
		} `json:"exercises"`
		Chapters []struct {
			Key         string `json:"key"`
			Name        string `json:"name"`
			Category    string `json:"category"`
			URL         string `json:"url"`
			GenerateTOC bool   `json:"generate_toc"`
		} `json:"chapters"`
	} `json:"modules"`
}

// Import fetches the course configuration document from the service and
// creates or updates categories, rounds, exercises and chapters keyed by
// their remote keys.
func (s *courseService) Import(ctx context.Context, courseKey string) (dto.ImportResult, error) {
	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ImportResult{}, ErrCourseNotFound
		}
		return dto.ImportResult{}, err
	}
	if course.ConfigURL == "" {
		return dto.ImportResult{}, ErrConfigURLMissing
	}

	body, err := s.fetcher.FetchJSON(ctx, course.ConfigURL, course.APIKey)
	if err != nil {
		s.failures.Record(ctx, models.ServiceFailureEvent{
			CourseID:    course.ID,
			Kind:        models.FailureKindTransport,
			ObjectTable: "courses",
			ObjectID:    course.ID,
			URL:         course.ConfigURL,
			Error:       err.Error(),
		})
		return dto.ImportResult{}, ErrServiceUnavailable
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return dto.ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidCourseConfig, err)
	}
	if err := s.schema.Validate(raw); err != nil {
		s.failures.Record(ctx, models.ServiceFailureEvent{
			CourseID:    course.ID,
			Kind:        models.FailureKindInvalidResponse,
			ObjectTable: "courses",
			ObjectID:    course.ID,
			URL:         course.ConfigURL,
			Error:       err.Error(),
		})
		return dto.ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidCourseConfig, err)
	}

	var doc configDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return dto.ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidCourseConfig, err)
	}

	return s.applyConfig(ctx, course, doc)
}

func (s *courseService) applyConfig(ctx context.Context, course models.Course, doc configDocument) (dto.ImportResult, error) {
	var result dto.ImportResult

	categoryIDsByName := make(map[string]uint)
	for _, cat := range doc.Categories {
		status := cat.Status
		if status == "" {
			status = models.StatusReady
		}

		existing, err := s.categories.GetByName(ctx, course.ID, cat.Name)
		switch {
		case err == nil:
			existing.Status = status
			existing.PointsToPass = cat.PointsToPass
			if err := s.categories.Update(ctx, &existing); err != nil {
				return result, err
			}
			categoryIDsByName[cat.Name] = existing.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			category := models.Category{
				CourseID:     course.ID,
				Name:         cat.Name,
				Status:       status,
				PointsToPass: cat.PointsToPass,
			}
			if err := s.categories.Create(ctx, &category); err != nil {
				return result, err
			}
			categoryIDsByName[cat.Name] = category.ID
			result.Categories++
		default:
			return result, err
		}
	}

	for _, module := range doc.Modules {
		status := module.Status
		if status == "" {
			status = models.StatusReady
		}

		round, err := s.rounds.GetByRemoteKey(ctx, course.ID, module.Key)
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return result, err
		}

		round.CourseID = course.ID
		round.RemoteKey = module.Key
		round.Name = module.Name
		round.OrderNum = module.Order
		round.Status = status
		round.OpeningTime = module.OpeningTime
		round.ClosingTime = module.ClosingTime
		round.LateSubmissionDeadline = module.LateClose
		round.LateSubmissionsAllowed = module.LateClose != nil
		if module.LatePenalty > 0 {
			round.LateSubmissionPenalty = module.LatePenalty
		}
		round.PointsToPass = module.PointsToPass
		if round.MaxSubmissionsDefault == 0 {
			round.MaxSubmissionsDefault = 10
		}

		if err := validateRoundTimes(round); err != nil {
			return result, err
		}

		if isNew {
			if err := s.rounds.Create(ctx, &round); err != nil {
				return result, err
			}
			result.Rounds++
		} else {
			if err := s.rounds.Update(ctx, &round); err != nil {
				return result, err
			}
		}

		nextItemNumber := 1
		for _, ex := range module.Exercises {
			categoryID, ok := categoryIDsByName[ex.Category]
			if !ok {
				category, err := s.ensureCategory(ctx, course.ID, ex.Category)
				if err != nil {
					return result, err
				}
				categoryIDsByName[ex.Category] = category.ID
				categoryID = category.ID
				result.Categories++
			}

			itemNumber := ex.GradeItemNumber
			if itemNumber == 0 {
				itemNumber = nextItemNumber
			}
			nextItemNumber = itemNumber + 1

			maxSubmissions := round.MaxSubmissionsDefault
			if ex.MaxSubmissions != nil {
				maxSubmissions = *ex.MaxSubmissions
			}

			exercise, err := s.exercises.GetByRemoteKey(ctx, round.ID, ex.Key)
			exerciseIsNew := errors.Is(err, gorm.ErrRecordNotFound)
			if err != nil && !exerciseIsNew {
				return result, err
			}

			previousMaxPoints := exercise.MaxPoints
			exercise.RoundID = round.ID
			exercise.CategoryID = categoryID
			exercise.RemoteKey = ex.Key
			exercise.Name = ex.Name
			exercise.ServiceURL = ex.URL
			exercise.MaxPoints = ex.MaxPoints
			exercise.PointsToPass = ex.PointsToPass
			exercise.MaxSubmissions = maxSubmissions
			exercise.GradeItemNumber = itemNumber
			if exercise.Status == "" {
				exercise.Status = models.StatusReady
			}
			exercise.Round = models.ExerciseRound{}

			if exerciseIsNew {
				if err := s.exercises.Create(ctx, &exercise); err != nil {
					return result, err
				}
				result.Exercises++
			} else {
				if err := s.exercises.Update(ctx, &exercise); err != nil {
					return result, err
				}
			}

			if delta := exercise.MaxPoints - previousMaxPoints; delta != 0 {
				if err := s.rounds.IncrementMaxPoints(ctx, round.ID, delta); err != nil {
					return result, err
				}
			}
		}

		for _, ch := range module.Chapters {
			categoryID, ok := categoryIDsByName[ch.Category]
			if !ok {
				category, err := s.ensureCategory(ctx, course.ID, ch.Category)
				if err != nil {
					return result, err
				}
				categoryIDsByName[ch.Category] = category.ID
				categoryID = category.ID
				result.Categories++
			}

			chapter, err := s.exercises.GetChapterByRemoteKey(ctx, round.ID, ch.Key)
			chapterIsNew := errors.Is(err, gorm.ErrRecordNotFound)
			if err != nil && !chapterIsNew {
				return result, err
			}

			chapter.RoundID = round.ID
			chapter.CategoryID = categoryID
			chapter.RemoteKey = ch.Key
			chapter.Name = ch.Name
			chapter.ServiceURL = ch.URL
			chapter.GeneratesTOC = ch.GenerateTOC
			if chapter.Status == "" {
				chapter.Status = models.StatusReady
			}
			chapter.Round = models.ExerciseRound{}

			if chapterIsNew {
				if err := s.exercises.CreateChapter(ctx, &chapter); err != nil {
					return result, err
				}
				result.Chapters++
			} else {
				if err := s.exercises.UpdateChapter(ctx, &chapter); err != nil {
					return result, err
				}
			}
		}
	}

	s.logger.Info().
		Str("course_key", course.CourseKey).
		Int("rounds", result.Rounds).
		Int("exercises", result.Exercises).
		Msg("course configuration imported")

	return result, nil
}

func (s *courseService) ensureCategory(ctx context.Context, courseID uint, name string) (models.Category, error) {
	existing, err := s.categories.GetByName(ctx, courseID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Category{}, err
	}

	category := models.Category{
		CourseID: courseID,
		Name:     name,
		Status:   models.StatusReady,
	}
	if err := s.categories.Create(ctx, &category); err != nil {
		return models.Category{}, err
	}

	return category, nil
}
