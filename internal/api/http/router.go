package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Controllers struct {
	Profiles      *ProfileController
	Conversations *ConversationController
	Appointments  *AppointmentController
	Rooms         *RoomController
	Realtime      *RealtimeController
}

func SetupRouter(auth *Authenticator, allowedOrigins []string, c Controllers) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(auth.Middleware())

	if c.Profiles != nil {
		profiles := api.Group("/profiles")
		profiles.POST("", c.Profiles.CreateProfile)
		profiles.GET("", c.Profiles.ListProfiles)
		profiles.GET("/me", c.Profiles.Me)
		profiles.GET("/:profileID", c.Profiles.GetProfile)
		profiles.PATCH("/:profileID", c.Profiles.UpdateProfile)
	}

	if c.Conversations != nil {
		conversations := api.Group("/conversations")
		conversations.POST("", c.Conversations.StartConversation)
		conversations.GET("", c.Conversations.ListConversations)
		conversations.GET("/:conversationID", c.Conversations.GetConversation)
		conversations.PATCH("/:conversationID/status", c.Conversations.UpdateStatus)
		conversations.GET("/:conversationID/messages", c.Conversations.ListMessages)
		conversations.POST("/:conversationID/messages", c.Conversations.SendMessage)

		messages := api.Group("/messages")
		messages.GET("/:messageID", c.Conversations.GetMessage)
		messages.PATCH("/:messageID/status", c.Conversations.MarkMessage)
	}

	if c.Appointments != nil {
		appointments := api.Group("/appointments")
		appointments.POST("", c.Appointments.BookAppointment)
		appointments.GET("", c.Appointments.ListAppointments)
		appointments.GET("/:appointmentID", c.Appointments.GetAppointment)
		appointments.PATCH("/:appointmentID/status", c.Appointments.UpdateStatus)
		appointments.PUT("/:appointmentID/schedule", c.Appointments.Reschedule)
		appointments.GET("/:appointmentID/join", c.Appointments.JoinWindow)
		appointments.GET("/:appointmentID/rooms", c.Appointments.ListRooms)
	}

	if c.Rooms != nil {
		rooms := api.Group("/rooms")
		rooms.POST("", c.Rooms.CreateRoom)
		rooms.POST("/register", c.Rooms.RegisterRoom)
		rooms.GET("/:roomID", c.Rooms.GetRoom)
		rooms.POST("/:roomID/start", c.Rooms.StartCall)
		rooms.POST("/:roomID/end", c.Rooms.EndCall)
	}

	if c.Realtime != nil {
		api.GET("/realtime/conversations/:conversationID/messages", c.Realtime.SubscribeMessages)
	}

	return router
}
