// Command mockserver serves the generic backend wire format for local runs of
// the gateway with backend.type: http.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sleepstars/chatgate/internal/clients"
	"github.com/sleepstars/chatgate/internal/models"
)

func main() {
	port := flag.String("port", "8001", "Port to run the server on")
	content := flag.String("content", clients.DefaultMockContent, "Text returned for every request")
	delay := flag.Duration("delay", 50*time.Millisecond, "Delay between streamed words")
	flag.Parse()

	r := newRouter(clients.NewMockClient(clients.BackendConfig{MockContent: *content, ChunkDelay: *delay}))

	// Start server
	if err := r.Run(":" + *port); err != nil {
		log.Fatal(err)
	}
}

func newRouter(backend clients.Backend) *gin.Engine {
	r := gin.Default()

	// Chat endpoint, generic backend wire
	r.POST("/chat", func(c *gin.Context) {
		var req models.BackendChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !req.IsStream {
			res, err := backend.Invoke(c.Request.Context(), &req)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, res)
			return
		}

		events, err := backend.InvokeStream(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(c.Writer)
		for ev := range events {
			if err := enc.Encode(ev); err != nil {
				return
			}
			c.Writer.Flush()
		}
	})

	return r
}
