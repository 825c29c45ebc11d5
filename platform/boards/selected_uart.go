//go:build gumbi_uart

package boards

// Selected is the board the firmware image is built for.
var Selected = PicoUART
