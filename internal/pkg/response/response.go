package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, errorBody(code, message, nil))
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, errorBody(code, message, details))
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, statusCode int, code string, message string) {
	c.AbortWithStatusJSON(statusCode, errorBody(code, message, nil))
}

func errorBody(code, message string, details any) gin.H {
	e := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		e["details"] = details
	}
	return gin.H{
		"success": false,
		"error":   e,
	}
}
