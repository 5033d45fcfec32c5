package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderPaginationTotalCount carries the pre-pagination result count of a search.
const HeaderPaginationTotalCount = "X-Pagination-Total-Count"

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

// writeResponse wraps data in the {data, errors} envelope. Error responses always use it.
func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

func writeError(c *gin.Context, statusCode int, err string) {
	c.Abort()
	writeResponse(c, nil, statusCode, []string{err})
}
