package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/coursedesk/coursedesk/app/repository"
)

// HandleListCourses returns the published catalog, paginated.
func HandleListCourses(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	repos := repository.GetGlobalRepositories()
	courses, err := repos.Course.ListPublished((page-1)*perPage, perPage)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not load courses")
	}
	total, err := repos.Course.Count()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not load courses")
	}

	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"courses":  courses,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

// HandleGetCourse returns a single course by slug.
func HandleGetCourse(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "slug is required")
	}

	course, err := repository.GetGlobalRepositories().Course.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fiber.StatusNotFound, "INVALID_COURSE", "course not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not load course")
	}
	if !course.Published {
		return respondError(c, fiber.StatusNotFound, "INVALID_COURSE", "course not found")
	}

	return respondSuccess(c, fiber.StatusOK, fiber.Map{"course": course})
}
