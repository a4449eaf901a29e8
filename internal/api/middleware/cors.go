package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORS answers preflight requests and decorates responses for origins.
// An empty list allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         600,
	})

	return func(ctx *gin.Context) {
		passed := false
		c.ServeHTTP(ctx.Writer, ctx.Request, func(w http.ResponseWriter, r *http.Request) {
			passed = true
			ctx.Request = r
		})
		if !passed {
			// preflight already answered
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
