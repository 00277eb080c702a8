package response

import "github.com/gin-gonic/gin"

type APIError struct {
	Message string `json:"message"`
}

type APIResponse struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

func RespondOK(c *gin.Context, status int, data any) {
	c.JSON(status, APIResponse{Data: data})
}

func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Error: &APIError{Message: message},
	})
}
