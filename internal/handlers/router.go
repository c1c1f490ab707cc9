package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	printHandler  *PrintHandler
	configHandler *ConfigHandler
}

func NewHandlerManager(
	printHandler *PrintHandler,
	configHandler *ConfigHandler,
) *HandlerManager {
	return &HandlerManager{
		printHandler:  printHandler,
		configHandler: configHandler,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(AuthContextMiddleware())

	v1 := router.Group("/api/v1")
	{
		prints := v1.Group("/prints")
		{
			prints.POST("", hm.printHandler.CompilePrint)
			prints.GET("/:id", hm.printHandler.GetPrint)
			prints.POST("/:id/answers", hm.printHandler.SaveAnswers)
			prints.POST("/:id/send", hm.printHandler.SendPrint)
		}

		results := v1.Group("/results")
		{
			results.GET("", hm.printHandler.ListResults)
			results.GET("/export", hm.printHandler.ExportResults)
		}

		courses := v1.Group("/courses")
		{
			courses.GET("/:course_id/test-config", hm.configHandler.GetConfig)
			courses.PUT("/:course_id/test-config", hm.configHandler.UpdateConfig)
			courses.DELETE("/:course_id/users/:user_id/prints", hm.printHandler.DeleteUserPrints)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "selftest-service",
		})
	})
}

// AuthContextMiddleware lifts the authenticated identity from the gateway
// headers into the request context. Authentication itself happens upstream;
// this service only consumes the result.
func AuthContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
				c.Set("user_id", uint(id))
			}
		}
		c.Next()
	}
}
