package routes

import (
	"PawArena/controllers"
	"PawArena/middleware"
	"PawArena/services/battle"
	"PawArena/services/redis"
	utils "PawArena/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, redisClient *redis.RedisClient,
	coordinator *battle.Coordinator) {

	// utils global
	router.Use(utils.ErrorHandler())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes group
	api := router.Group("/")

	api.GET("/ping", controllers.Ping)

	api.GET("/users/:username", controllers.GetUserPublicInfo(db))

	api.POST("/login", controllers.Login(db))

	api.POST("/signup", controllers.SignUp(db))

	authentication := api.Group("/auth")
	authentication.Use(middleware.AuthRequired)
	{
		authentication.DELETE("/logout", controllers.Logout)

		authentication.GET("/me", controllers.GetUserPrivateInfo(db))

		battleGroup := authentication.Group("/battle")
		{
			battleGroup.POST("/queue", controllers.JoinBattleQueue(db, coordinator))

			battleGroup.DELETE("/queue", controllers.LeaveBattleQueue(db, coordinator))

			battleGroup.POST("/result", controllers.SubmitBattleResult(db, coordinator))

			battleGroup.GET("/history", controllers.GetBattleHistory(db, coordinator))

			battleGroup.GET("/status", controllers.GetBattleStatus(db, coordinator))

			battleGroup.POST("/reset", controllers.ResetBattle(db, coordinator))
		}
	}
}
