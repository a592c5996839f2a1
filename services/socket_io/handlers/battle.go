package handlers

import (
	"PawArena/services/battle"
	socketio_types "PawArena/services/socket_io/types"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"
)

// Function to handle the act of joining the matchmaking queue over the socket.
// Accepts either a plain battle type string or an object with battle_type and
// an optional pet_id. The coordinator performs the same validation and session
// placement as the HTTP endpoint, so both entry points stay interchangeable.
func HandleJoinQueue(coordinator *battle.Coordinator, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[QUEUE] HandleJoinQueue iniciado - Usuario: %s, Args: %v, Socket ID: %s",
			username, args, client.Id())

		if len(args) < 1 {
			log.Printf("[QUEUE-ERROR] Faltan argumentos para usuario %s", username)
			client.Emit("error", gin.H{"error": "Missing battle type"})
			return
		}

		var battleType string
		var petID *string

		switch arg := args[0].(type) {
		case string:
			battleType = arg
		case map[string]interface{}:
			battleType, _ = arg["battle_type"].(string)
			if pet, ok := arg["pet_id"].(string); ok && pet != "" {
				petID = &pet
			}
		default:
			client.Emit("error", gin.H{"error": "Invalid join_queue payload"})
			return
		}

		sessionID, err := coordinator.JoinQueue(username, battleType, petID)
		if err != nil {
			log.Printf("[QUEUE-ERROR] Error joining queue for %s: %v", username, err)
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}

		log.Printf("[QUEUE-SUCCESS] Usuario %s en cola, sesión %s", username, sessionID)
	}
}

// Exit the matchmaking queue voluntarily.
func HandleLeaveQueue(coordinator *battle.Coordinator, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[QUEUE] HandleLeaveQueue iniciado - Usuario: %s", username)

		if err := coordinator.LeaveQueue(username); err != nil {
			log.Printf("[QUEUE-ERROR] Error leaving queue for %s: %v", username, err)
			client.Emit("error", gin.H{"error": err.Error()})
			return
		}

		log.Printf("[QUEUE-SUCCESS] Usuario %s salió de la cola", username)
	}
}

// Push the current matchmaking state to the requesting socket.
func HandleGetBattleStatus(coordinator *battle.Coordinator, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		status, err := coordinator.Status(username)
		if err != nil {
			log.Printf("[STATUS-ERROR] Error fetching status for %s: %v", username, err)
			client.Emit("error", gin.H{"error": "Error retrieving queue status"})
			return
		}

		client.Emit("battle_status", status)
	}
}

// Function to handle socket.io client disconnections.
func HandleDisconnecting(username string, sio *socketio_types.SocketServer,
	coordinator *battle.Coordinator) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[DISCONNECT] HandleDisconnecting iniciado - Usuario: %s", username)

		// Abandon any waiting session so the other participants aren't stuck
		// waiting for a ghost. In-battle state survives a reconnect.
		if err := coordinator.LeaveQueue(username); err != nil &&
			err != battle.ErrNotQueuing {
			log.Printf("[DISCONNECT-ERROR] Error leaving queue for %s: %v", username, err)
		}

		coordinator.CleanupSubscriptions(username)

		// Finally remove connection from map
		sio.RemoveConnection(username)
		log.Printf("[DISCONNECT-DONE] Usuario desconectado: %s", username)
	}
}
