package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/prankroom/prank-studio/internal/model"
)

// GetCharacters returns the fixed character catalog.  Served through the
// response-cache middleware since the list never changes at runtime.
func GetCharacters(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"characters": model.CharacterSlugs})
}

// GetActions returns the fixed action catalog.
func GetActions(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"actions": model.ActionSlugs})
}

// GetTokenPackages returns the purchasable token bundles.
func GetTokenPackages(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"packages": model.TokenPackages})
}
