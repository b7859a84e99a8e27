// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// tickerRegex matches ticker symbols as they appear in provider responses,
// including exchange-prefixed crypto pairs like BINANCE:BTCUSDT and
// dotted share classes like BRK.B.
var tickerRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-:]{0,19}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ticker", validateTicker)
		_ = v.RegisterValidation("news_category", validateNewsCategory)
		_ = v.RegisterValidation("mover_direction", validateMoverDirection)
	}
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(fl.Field().String())
}

func validateNewsCategory(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "general", "forex", "crypto", "merger":
		return true
	}
	return false
}

func validateMoverDirection(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "gainers", "losers":
		return true
	}
	return false
}
