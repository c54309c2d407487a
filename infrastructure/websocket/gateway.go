package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"todo-backend/pkg/auth"
)

// TokenValidator checks the token a client connects with
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Gateway handles the $connect and $disconnect routes
type Gateway struct {
	validator   TokenValidator
	connections ConnectionRepository
	now         func() time.Time
	logger      *zap.Logger
}

func NewGateway(validator TokenValidator, connections ConnectionRepository, logger *zap.Logger) *Gateway {
	return &Gateway{validator: validator, connections: connections, now: time.Now, logger: logger}
}

// Connect authenticates the client from the "token" query parameter or the
// Authorization header and stores the connection under its email.
func (g *Gateway) Connect(ctx context.Context, req lambdaevents.APIGatewayWebsocketProxyRequest) (lambdaevents.APIGatewayProxyResponse, error) {
	token := req.QueryStringParameters["token"]
	if token == "" {
		token = strings.TrimPrefix(req.Headers["Authorization"], "Bearer ")
	}

	claims, err := g.validator.ValidateToken(token)
	if err != nil || claims.Email == "" {
		g.logger.Info("Rejected websocket connection", zap.String("connectionID", req.RequestContext.ConnectionID), zap.Error(err))
		return lambdaevents.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized}, nil
	}

	if err := g.connections.Save(ctx, req.RequestContext.ConnectionID, claims.Email, g.now()); err != nil {
		g.logger.Error("Failed to store websocket connection", zap.Error(err))
		return lambdaevents.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return lambdaevents.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// Disconnect forgets the connection
func (g *Gateway) Disconnect(ctx context.Context, req lambdaevents.APIGatewayWebsocketProxyRequest) (lambdaevents.APIGatewayProxyResponse, error) {
	if err := g.connections.Delete(ctx, req.RequestContext.ConnectionID); err != nil {
		g.logger.Error("Failed to delete websocket connection", zap.Error(err))
		return lambdaevents.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return lambdaevents.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}
