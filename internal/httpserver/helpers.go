package httpserver

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var errUnauthorized = errors.New("unauthorized")

func userID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return uuid.Nil, errUnauthorized
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errUnauthorized
	}
	return id, nil
}

// actor is the admin identity recorded in history and refund fields.
func actor(c echo.Context) string {
	s, _ := c.Get("user_id").(string)
	return s
}

func pathIDs(c echo.Context) (orderID, itemID uuid.UUID, err error) {
	orderID, err = uuid.Parse(c.Param("order_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid order id")
	}
	if c.Param("item_id") == "" {
		return orderID, uuid.Nil, nil
	}
	itemID, err = uuid.Parse(c.Param("item_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid item id")
	}
	return orderID, itemID, nil
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
