package handlers

import (
	"net/http"

	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/apis"
	"github.com/archcatalog/catalog/validation"
	"github.com/gin-gonic/gin"
)

type ButtonKind string

const (
	ButtonSwagger ButtonKind = "swagger"
	ButtonPostman ButtonKind = "postman"
	ButtonGraphQL ButtonKind = "graphql"
	ButtonGRPC    ButtonKind = "grpc"
)

type Detector interface {
	Detect(repository string) apis.Detected
}

type RepositoryChecker interface {
	RepositoryExists(repository string) bool
}

type RepositoryRequest struct {
	Repository string `uri:"repository" validate:"valid_repository"`
}

type DetectAPIsResponse struct {
	APIs       apis.Detected `json:"apis"`
	HasAnyAPIs bool          `json:"hasAnyApis"`
}

type APIButton struct {
	Kind  ButtonKind `json:"kind"`
	Label string     `json:"label"`
	Title string     `json:"title"`
	Path  string     `json:"path"`
}

type APIButtonsResponse struct {
	Repository string      `json:"repository"`
	Buttons    []APIButton `json:"buttons"`
	HasAnyAPIs bool        `json:"hasAnyApis"`
}

func SetupAPIs(router gin.IRouter, logger logger.Logger, detector Detector, repositories RepositoryChecker, validator *validation.Validator) {
	router.GET("/api/detect-apis/:repository", handleDetectAPIs(detector, repositories, logger, validator))
	router.GET("/api/api-buttons/:repository", handleAPIButtons(detector, repositories, logger, validator))
}

func handleDetectAPIs(detector Detector, repositories RepositoryChecker, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		repository, ok := bindRepository(c, repositories, logger, validator)
		if !ok {
			return
		}

		detected := detector.Detect(repository)
		c.JSON(http.StatusOK, DetectAPIsResponse{APIs: detected, HasAnyAPIs: detected.HasAny()})
	}
}

func handleAPIButtons(detector Detector, repositories RepositoryChecker, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		repository, ok := bindRepository(c, repositories, logger, validator)
		if !ok {
			return
		}

		detected := detector.Detect(repository)
		c.JSON(http.StatusOK, APIButtonsResponse{
			Repository: repository,
			Buttons:    apiButtons(detected),
			HasAnyAPIs: detected.HasAny(),
		})
	}
}

// apiButtons lists one viewer button per detected file. REST specifications get both a
// Swagger UI and a Postman button.
func apiButtons(detected apis.Detected) []APIButton {
	buttons := []APIButton{}
	for _, file := range detected.REST {
		buttons = append(buttons,
			APIButton{Kind: ButtonSwagger, Label: "Swagger UI", Title: file.Title, Path: file.Path},
			APIButton{Kind: ButtonPostman, Label: "Postman", Title: file.Title, Path: file.Path},
		)
	}
	for _, file := range detected.GraphQL {
		buttons = append(buttons, APIButton{Kind: ButtonGraphQL, Label: "GraphQL Playground", Title: file.Title, Path: file.Path})
	}
	for _, file := range detected.GRPC {
		buttons = append(buttons, APIButton{Kind: ButtonGRPC, Label: "gRPC Explorer", Title: file.Title, Path: file.Path})
	}
	return buttons
}

func bindRepository(c *gin.Context, repositories RepositoryChecker, logger logger.Logger, validator *validation.Validator) (string, bool) {
	request := RepositoryRequest{}
	if err := c.ShouldBindUri(&request); err != nil {
		logger.Warn("could not extract repository from request", "err", err.Error())
		writeError(c, http.StatusUnprocessableEntity, "failed to extract path parameters")
		return "", false
	}

	if err := validator.Validate(request); err != nil {
		writeError(c, http.StatusNotAcceptable, err.Error())
		return "", false
	}

	if !repositories.RepositoryExists(request.Repository) {
		writeError(c, http.StatusNotFound, "repository not found")
		return "", false
	}

	return request.Repository, true
}
