package middleware

import (
	"errors"
	"net/http"
	"strings"

	"wellness-sync/domain/dto"
	"wellness-sync/domain/model"
	"wellness-sync/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Auth rejects requests without a valid Bearer session token.
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, err := parseBearer(ctx.GetHeader("Authorization"), secretKey)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized(err))
			return
		}
		setClaims(ctx, claims)
		ctx.Next()
	}
}

// OptionalAuth sets the session user when a valid token is present and lets everything else through.
func OptionalAuth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if header := ctx.GetHeader("Authorization"); header != "" {
			claims, err := parseBearer(header, secretKey)
			if err != nil {
				logger.GetLogger().WithField("error", err).Debug("Ignoring invalid session token")
			} else {
				setClaims(ctx, claims)
			}
		}
		ctx.Next()
	}
}

// AdminOnly must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetString(ContextRole) != model.RoleAdmin {
			ctx.AbortWithStatusJSON(http.StatusForbidden, dto.Res{ResponseCode: "403", ResponseMessage: "Forbidden"})
			return
		}
		ctx.Next()
	}
}

func setClaims(ctx *gin.Context, claims *model.UserClaims) {
	ctx.Set(ContextUserID, claims.Subject)
	ctx.Set(ContextRole, claims.Role)
}

var errMissingBearer = errors.New("missing bearer token")

func parseBearer(header, secretKey string) (*model.UserClaims, error) {
	raw := strings.TrimPrefix(header, "Bearer ")
	if header == "" || raw == header || raw == "" {
		return nil, errMissingBearer
	}
	var claims model.UserClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &claims, nil
}

func unauthorized(err error) dto.Res {
	res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			res.ResponseMessage = "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			res.ResponseMessage = "Timing is everything"
		}
	}
	return res
}
