package socket_io

import (
	"PawArena/services/battle"
	"PawArena/services/socket_io/handlers"

	socketio_types "PawArena/services/socket_io/types"
	socketio_utils "PawArena/services/socket_io/utils"
	"PawArena/services/sync"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

type MySocketServer socketio_types.SocketServer

func (sio *MySocketServer) Start(router *gin.Engine, db *gorm.DB, coordinator *battle.Coordinator,
	syncManager *sync.SyncManager) {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// NOTE: higher ping interval and timeout to 1) reduce network load and 2) support slower networks
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	// KEY: inicializar el map, sino panikea
	sio.UserConnections = make(map[string]*socket.Socket)

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		// Check if the client is authenticated
		success, username, email := socketio_utils.VerifyUserConnection(client, db)
		if !success {
			return
		}

		// Add connection to map
		(*socketio_types.SocketServer)(sio).AddConnection(username, client)

		fmt.Println("An individual just connected!: ", username, email)

		// A reconnecting client may carry a cached queue state from before
		// the disconnect; reconcile it against the session table first
		if syncManager != nil {
			if err := syncManager.SyncQueueState(username); err != nil {
				log.Printf("[SYNC-ERROR] Error syncing queue state for %s: %v", username, err)
			}
		}

		// Enter the matchmaking queue for a battle type
		client.On("join_queue", handlers.HandleJoinQueue(coordinator, client, username))

		// Exit the queue voluntarily
		client.On("leave_queue", handlers.HandleLeaveQueue(coordinator, client, username))

		// Request the current matchmaking state
		client.On("get_battle_status", handlers.HandleGetBattleStatus(coordinator, client, username))

		// Re-derive the full state of a session the user is part of
		client.On("get_session_info", handlers.HandleGetSessionInfo(db, client, username))

		// NOTE: will remove sio connection from map
		client.On("disconnecting", handlers.HandleDisconnecting(username,
			(*socketio_types.SocketServer)(sio), coordinator))
	})

	router.POST("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))
	router.GET("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))

	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				sio.Sio_server.Close(nil)
				os.Exit(0)
			}
		}
	}()

	fmt.Println("Socket server started")
}
