package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Rans7ord/Construction-sub000/app/dto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const companyIDContextKey = "company_id"

// TenantAuth extracts the tenant from a bearer token issued by the
// surrounding auth layer. The token's company_id claim is all this engine
// needs; session issuance stays outside it.
func TenantAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return ctx.JSON(http.StatusUnauthorized, &dto.ErrorResponse{Error: "missing bearer token"})
			}

			token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return ctx.JSON(http.StatusUnauthorized, &dto.ErrorResponse{Error: "invalid token"})
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, &dto.ErrorResponse{Error: "invalid token claims"})
			}
			companyID := companyIDFromClaims(claims)
			if companyID == 0 {
				return ctx.JSON(http.StatusUnauthorized, &dto.ErrorResponse{Error: "token has no company context"})
			}

			ctx.Set(companyIDContextKey, companyID)
			return next(ctx)
		}
	}
}

func companyIDFromClaims(claims jwt.MapClaims) uint64 {
	switch v := claims[companyIDContextKey].(type) {
	case float64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			return id
		}
	}
	return 0
}

func companyIDFromContext(ctx echo.Context) uint64 {
	id, _ := ctx.Get(companyIDContextKey).(uint64)
	return id
}
